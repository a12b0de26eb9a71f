package consts

const (
	DefaultConfigFile      = "config.json"
	DefaultLastRunningFile = "last.json"
	DefaultRecordingsDir   = "recordings"

	DefaultFilePerm = 0666
	DefaultDirPerm  = 0777
)
