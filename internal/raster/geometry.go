package raster

import (
	"math"
	"sort"
)

// Point is a 2D coordinate in pixel space (y grows downwards).
type Point struct {
	X, Y float64
}

// RotatedRect is an oriented rectangle. Axis is the unit direction of the
// first side and Width/Height are measured along Axis and its normal.
type RotatedRect struct {
	Corners       [4]Point
	Axis          Point
	Width, Height float64
}

// SkewAngle returns the rectangle orientation folded into (-45, 45] degrees.
// Positive values mean the content leans clockwise on screen.
func (r RotatedRect) SkewAngle() float64 {
	a := math.Atan2(r.Axis.Y, r.Axis.X) * 180 / math.Pi
	for a > 45 {
		a -= 90
	}
	for a <= -45 {
		a += 90
	}
	return a
}

// ConvexHull computes the convex hull of pts using the monotone chain
// algorithm. The hull is returned counter-clockwise without repeating the
// first point.
func ConvexHull(pts []Point) []Point {
	if len(pts) <= 1 {
		return append([]Point(nil), pts...)
	}
	p := append([]Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	uniq := p[:1]
	for _, pt := range p[1:] {
		if pt != uniq[len(uniq)-1] {
			uniq = append(uniq, pt)
		}
	}
	p = uniq
	if len(p) <= 2 {
		return p
	}

	lower := make([]Point, 0, len(p))
	for _, pt := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	upper := make([]Point, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		pt := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}

	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaRect finds the minimum-area enclosing rectangle of pts with
// rotating calipers over the convex hull. ok is false for fewer than three
// non-collinear points.
func MinAreaRect(pts []Point) (RotatedRect, bool) {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		return RotatedRect{}, false
	}

	bestArea := math.Inf(1)
	var best RotatedRect
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		l := math.Hypot(b.X-a.X, b.Y-a.Y)
		if l == 0 {
			continue
		}
		u := Point{(b.X - a.X) / l, (b.Y - a.Y) / l}
		v := Point{-u.Y, u.X}

		minS, maxS := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*u.X + p.Y*u.Y
			t := p.X*v.X + p.Y*v.Y
			minS, maxS = math.Min(minS, s), math.Max(maxS, s)
			minT, maxT = math.Min(minT, t), math.Max(maxT, t)
		}

		area := (maxS - minS) * (maxT - minT)
		if area < bestArea {
			bestArea = area
			best = RotatedRect{
				Axis:   u,
				Width:  maxS - minS,
				Height: maxT - minT,
				Corners: [4]Point{
					{u.X*minS + v.X*minT, u.Y*minS + v.Y*minT},
					{u.X*maxS + v.X*minT, u.Y*maxS + v.Y*minT},
					{u.X*maxS + v.X*maxT, u.Y*maxS + v.Y*maxT},
					{u.X*minS + v.X*maxT, u.Y*minS + v.Y*maxT},
				},
			}
		}
	}
	return best, !math.IsInf(bestArea, 1)
}
