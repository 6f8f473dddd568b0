package domain

// Artifact is one concrete output file of a run: the archive, its encrypted
// form, or one split part.
type Artifact struct {
	Path       string         `json:"path"`
	Format     Format         `json:"format"`
	Size       int64          `json:"size"`
	Encryption EncryptionMode `json:"encryption"`
	SplitPart  bool           `json:"split_part"`
	PartIndex  int            `json:"part_index,omitempty"`
}

func (a Artifact) Encrypted() bool {
	return a.Encryption.Enabled()
}

func ArtifactPaths(artifacts []Artifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	return paths
}

func TotalSize(artifacts []Artifact) int64 {
	var total int64
	for _, a := range artifacts {
		total += a.Size
	}
	return total
}

// SourceFile is a regular file selected for archiving.
type SourceFile struct {
	Root string // source root as given by the operator
	Path string // path as passed to the archiver (Root joined with Rel)
	Rel  string // path relative to Root
	Size int64
}

// FileSet is the result of filtering the job sources through the exclude rules.
type FileSet struct {
	Files []SourceFile
}

func (s FileSet) Len() int {
	return len(s.Files)
}

func (s FileSet) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

func (s FileSet) Size() int64 {
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}
