package catalog

// Credentials identify a catalog account. They are never logged unmasked.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// File is one downloadable file of a dataset.
type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Dataset is a search hit that carries at least one CSV file.
type Dataset struct {
	Ref         string `json:"ref"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CSVFiles    []File `json:"csv_files"`
	Score       int    `json:"score"`
}

// Metadata lists the CSV files of a single dataset.
type Metadata struct {
	Ref      string `json:"ref"`
	CSVFiles []File `json:"csv_files"`
}
