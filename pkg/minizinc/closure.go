package minizinc

// Relations is the requisite data the closure and data writer read.
// *catalog.Catalog satisfies it.
type Relations interface {
	Prerequisites(code string) [][]string
	Corequisite(code string) string
	Incompatible(code string) []string
	Units(code string) []int
	Semesters(code string) []string
}

// Closure is the course universe of a model.
type Closure struct {
	// Grad holds the listed courses and everything they require.
	Grad []string
	// Undergrad holds courses reachable only as incompatibilities.
	Undergrad []string
	// Passes counts full passes over Grad, the last of which added nothing.
	Passes int
}

// Close grows seed to a fixed point. Prerequisites and corequisites of a
// graduate course join the graduate set; its incompatible courses join the
// undergraduate set. A course is never moved or removed once placed.
func Close(seed []string, rel Relations) Closure {
	var c Closure
	seen := make(map[string]bool)
	for _, code := range seed {
		if code != "" && !seen[code] {
			seen[code] = true
			c.Grad = append(c.Grad, code)
		}
	}

	for {
		c.Passes++
		added := false
		// Grad may grow during the pass; new courses are visited in the same pass.
		for i := 0; i < len(c.Grad); i++ {
			code := c.Grad[i]
			for _, alt := range rel.Prerequisites(code) {
				for _, p := range alt {
					if p != "" && !seen[p] {
						seen[p] = true
						c.Grad = append(c.Grad, p)
						added = true
					}
				}
			}
			if co := rel.Corequisite(code); co != "" && !seen[co] {
				seen[co] = true
				c.Grad = append(c.Grad, co)
				added = true
			}
			for _, inc := range rel.Incompatible(code) {
				if inc != "" && !seen[inc] {
					seen[inc] = true
					c.Undergrad = append(c.Undergrad, inc)
					added = true
				}
			}
		}
		if !added {
			return c
		}
	}
}
