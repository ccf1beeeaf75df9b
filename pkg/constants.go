package cashier

// File constants
const (
	RecordFileName = ".cash_file"           // Per-directory record, sibling to the directory's entries
	RecordTempName = ".cash_file-%d-%d.tmp" // Temporary record written before the atomic rename
	ConfigDirName  = ".cashier"             // Holds the optional config and ignore files
	ConfigFileName = "config"
	IgnoreFileName = "ignore"
)

// HiddenPrefix marks entries that never take part in the hash
const HiddenPrefix = "."

// Defaults used when no config file is present
const (
	DefaultHashAlgorithm = "sha1"
	DefaultHashWorkers   = 4
	DefaultHashBuffer    = "2M"
	DefaultMaxDepth      = 4096
	DefaultDirWorkers    = 8
)
