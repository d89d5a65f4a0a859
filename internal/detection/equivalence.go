// equivalence.go: equivalence groups for flexible category matching
package detection

// Equivalence groups compensate for a base detector whose classes are
// coarser than the product's category list: visually similar classes within
// a group count toward each other, at a higher confidence bar and with a
// confidence penalty applied by the counting policy.
var equivalenceGroups = map[string][]string{
	"animals": {"cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe"},
}

// groupOf returns the equivalence group name for a label, if any.
func groupOf(label string) (string, bool) {
	for name, members := range equivalenceGroups {
		for _, member := range members {
			if member == label {
				return name, true
			}
		}
	}
	return "", false
}

// Equivalent reports whether two distinct labels belong to the same
// equivalence group.
func Equivalent(a, b string) bool {
	if a == b {
		return false
	}
	ga, ok := groupOf(a)
	if !ok {
		return false
	}
	gb, ok := groupOf(b)
	return ok && ga == gb
}
