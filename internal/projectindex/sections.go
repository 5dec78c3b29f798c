package projectindex

// Section groups projects by whether they have a target
type Section int

const (
	WithTarget Section = iota
	WithoutTarget
)

// IndexPath addresses a project by section and offset within the section
type IndexPath struct {
	Section Section
	Item    int
}

// NumberOfItems returns the size of a section, or 0 for an unknown section
func (p ProjectIDsByTimeTargets) NumberOfItems(section Section) int {
	switch section {
	case WithTarget:
		return p.CountWithTargets()
	case WithoutTarget:
		return p.CountWithoutTargets()
	default:
		return 0
	}
}

// ProjectID returns the project at path
func (p ProjectIDsByTimeTargets) ProjectID(path IndexPath) (int64, bool) {
	if path.Item < 0 || path.Item >= p.NumberOfItems(path.Section) {
		return 0, false
	}
	return p.sortedIDs[p.globalIndex(path)], true
}

// IndexPath returns where projectID is, or false if it is not indexed
func (p ProjectIDsByTimeTargets) IndexPath(projectID int64) (IndexPath, bool) {
	i := p.indexOf(projectID)
	if i < 0 {
		return IndexPath{}, false
	}
	return p.IndexPathForIndex(i)
}

// IndexPathForIndex maps a position in the whole ordering to its section and offset
func (p ProjectIDsByTimeTargets) IndexPathForIndex(i int) (IndexPath, bool) {
	if i < 0 || i >= len(p.sortedIDs) {
		return IndexPath{}, false
	}
	if i < p.countWithTargets {
		return IndexPath{Section: WithTarget, Item: i}, true
	}
	return IndexPath{Section: WithoutTarget, Item: i - p.countWithTargets}, true
}

// LastIndexPath returns the path of the last item in section, or false if it is empty
func (p ProjectIDsByTimeTargets) LastIndexPath(section Section) (IndexPath, bool) {
	n := p.NumberOfItems(section)
	if n == 0 {
		return IndexPath{}, false
	}
	return IndexPath{Section: section, Item: n - 1}, true
}

func (p ProjectIDsByTimeTargets) globalIndex(path IndexPath) int {
	if path.Section == WithoutTarget {
		return p.countWithTargets + path.Item
	}
	return path.Item
}
