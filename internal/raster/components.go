package raster

import "image"

// Component describes one 8-connected foreground region of a Mask.
type Component struct {
	MinX, MinY, MaxX, MaxY int
	Pixels                 int
}

// Bounds returns the component's bounding box as a half-open rectangle.
func (c Component) Bounds() image.Rectangle {
	return image.Rect(c.MinX, c.MinY, c.MaxX+1, c.MaxY+1)
}

// Area is the area of the component's bounding box.
func (c Component) Area() int {
	return (c.MaxX - c.MinX + 1) * (c.MaxY - c.MinY + 1)
}

// ConnectedComponents labels the 8-connected foreground regions of m using
// breadth-first search and returns them in scan order.
func ConnectedComponents(m *Mask) []Component {
	visited := make([]bool, len(m.Pix))
	var comps []Component
	queue := make([]int, 0, 64)

	for start, v := range m.Pix {
		if !v || visited[start] {
			continue
		}
		sx, sy := start%m.W, start/m.W
		c := Component{MinX: sx, MinY: sy, MaxX: sx, MaxY: sy}
		visited[start] = true
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]
			x, y := idx%m.W, idx/m.W
			c.Pixels++
			c.MinX = min(c.MinX, x)
			c.MinY = min(c.MinY, y)
			c.MaxX = max(c.MaxX, x)
			c.MaxY = max(c.MaxY, y)

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || !m.At(nx, ny) {
						continue
					}
					n := ny*m.W + nx
					if !visited[n] {
						visited[n] = true
						queue = append(queue, n)
					}
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}
