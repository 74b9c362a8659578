package raster

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvexHullSquareWithInteriorPoints(t *testing.T) {
	pts := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {5, 5}, {2, 3}, {10, 10}}
	hull := ConvexHull(pts)
	assert.Len(t, hull, 4)
	assert.NotContains(t, hull, Point{5, 5})
}

func TestMinAreaRectSkewAngle(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
	}{
		{"axis aligned", 0},
		{"small clockwise lean", 4},
		{"small counter-clockwise lean", -7},
		{"near diagonal", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rad := tt.angle * math.Pi / 180
			cos, sin := math.Cos(rad), math.Sin(rad)
			var pts []Point
			for x := 0.0; x <= 200; x += 10 {
				for y := 0.0; y <= 60; y += 10 {
					pts = append(pts, Point{X: x*cos - y*sin + 300, Y: x*sin + y*cos + 300})
				}
			}

			rect, ok := MinAreaRect(pts)
			require.True(t, ok)
			assert.InDelta(t, tt.angle, rect.SkewAngle(), 0.01)
			assert.InDelta(t, 200*60, rect.Width*rect.Height, 1)
		})
	}
}

func TestMinAreaRectDegenerate(t *testing.T) {
	_, ok := MinAreaRect([]Point{{1, 1}, {2, 2}, {3, 3}})
	assert.False(t, ok)
	_, ok = MinAreaRect(nil)
	assert.False(t, ok)
}

func genPoints() gopter.Gen {
	return gen.SliceOfN(12, gopter.CombineGens(
		gen.Float64Range(-100, 100),
		gen.Float64Range(-100, 100),
	).Map(func(vals []interface{}) Point {
		return Point{X: vals[0].(float64), Y: vals[1].(float64)}
	}))
}

func TestMinAreaRectNeverExceedsBoundingBox(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("min-area rect is no larger than the axis-aligned box", prop.ForAll(
		func(pts []Point) bool {
			rect, ok := MinAreaRect(pts)
			if !ok {
				return true
			}
			minX, minY := math.Inf(1), math.Inf(1)
			maxX, maxY := math.Inf(-1), math.Inf(-1)
			for _, p := range pts {
				minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
				minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
			}
			return rect.Width*rect.Height <= (maxX-minX)*(maxY-minY)+1e-6
		},
		genPoints(),
	))

	properties.Property("skew angle stays within (-45, 45]", prop.ForAll(
		func(pts []Point) bool {
			rect, ok := MinAreaRect(pts)
			if !ok {
				return true
			}
			a := rect.SkewAngle()
			return a > -45 && a <= 45
		},
		genPoints(),
	))

	properties.TestingRun(t)
}
