package overlay

// Set maps overlay titles to layers and remembers insertion order.
type Set struct {
	titles []string
	layers map[string]*Layer
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{layers: make(map[string]*Layer)}
}

// Put stores l under title. A repeated title keeps its first position.
func (s *Set) Put(title string, l *Layer) {
	if _, exists := s.layers[title]; !exists {
		s.titles = append(s.titles, title)
	}
	s.layers[title] = l
}

// Get returns the layer stored under title.
func (s *Set) Get(title string) (*Layer, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.layers[title]
	return l, ok
}

// Titles returns the titles in insertion order.
func (s *Set) Titles() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.titles...)
}

// Layers returns the layers in insertion order.
func (s *Set) Layers() []*Layer {
	if s == nil {
		return nil
	}
	out := make([]*Layer, 0, len(s.titles))
	for _, t := range s.titles {
		out = append(out, s.layers[t])
	}
	return out
}

// Len returns the number of layers.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.titles)
}

// Infos summarizes every layer in order.
func (s *Set) Infos() []Info {
	out := []Info{}
	for _, l := range s.Layers() {
		out = append(out, l.Info())
	}
	return out
}
