package render

// Section is a node of a page table of contents.
//
// The root is the page itself at level 0. Every child has a strictly greater
// level than its parent; siblings are in document order.
type Section struct {
	Link     string     `json:"link"`
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Children []*Section `json:"children,omitempty"`
}

// tocBuilder tracks the open sections while headings are visited.
type tocBuilder struct {
	root  *Section
	stack []*Section
}

func newTOC(title, link string) *tocBuilder {
	root := &Section{Title: title, Link: link}
	return &tocBuilder{root: root, stack: []*Section{root}}
}

// open starts a section of the given level under the closest open section of
// a lower level.
func (b *tocBuilder) open(level int) {
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].Level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	s := &Section{Level: level}
	parent := b.stack[len(b.stack)-1]
	parent.Children = append(parent.Children, s)
	b.stack = append(b.stack, s)
}

// current returns the most recently opened section.
func (b *tocBuilder) current() *Section {
	return b.stack[len(b.stack)-1]
}
