package github

// NodeKind distinguishes files from directories in a repository tree.
type NodeKind uint8

const (
	Blob NodeKind = iota
	Tree
)

// Ref identifies one repository to scan.
type Ref struct {
	Host     string // host the identifier was given with, if it was a URL
	Owner    string
	Name     string
	Revision string // branch, tag or commit SHA; empty until resolved
}

func (r Ref) String() string {
	return r.Owner + "/" + r.Name
}

// TreeNode is one entry of a repository tree. Size is only meaningful
// for Blob nodes.
type TreeNode struct {
	Path string
	Kind NodeKind
	Size int64
}
