package export

// Sheet is a rendered view of one journal's submission requirements: a title
// plus ordered label/value rows. Row order is preserved by every renderer.
type Sheet struct {
	Title string
	Rows  []Row
}

// Row is a single labelled requirement line.
type Row struct {
	Label string
	Value string
}
