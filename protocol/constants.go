package protocol

// Default network ports for FastDFS servers
const (
	TrackerDefaultPort = 22122
	StorageDefaultPort = 23000
)

// Tracker protocol commands
const (
	CmdTrackerListOneGroup           byte = 90
	CmdTrackerListGroups             byte = 91
	CmdTrackerListStorages           byte = 92
	CmdTrackerDeleteStorage          byte = 93
	CmdTrackerQueryStoreWithoutGroup byte = 101
	CmdTrackerQueryFetchOne          byte = 102
	CmdTrackerQueryUpdate            byte = 103
	CmdTrackerQueryStoreWithGroup    byte = 104
	CmdTrackerQueryFetchAll          byte = 105
)

// Storage protocol commands
const (
	CmdStorageUploadFile         byte = 11
	CmdStorageDeleteFile         byte = 12
	CmdStorageSetMetadata        byte = 13
	CmdStorageDownloadFile       byte = 14
	CmdStorageGetMetadata        byte = 15
	CmdStorageUploadSlaveFile    byte = 21
	CmdStorageQueryFileInfo      byte = 22
	CmdStorageUploadAppenderFile byte = 23
	CmdStorageAppendFile         byte = 24
	CmdStorageModifyFile         byte = 34
	CmdStorageTruncateFile       byte = 36
)

// CmdResp is the command code carried by every server response.
const CmdResp byte = 100

// Protocol field size limits
const (
	HeaderLen         = 10 // 8 byte length + 1 byte cmd + 1 byte status
	GroupNameMaxLen   = 16
	FileExtNameMaxLen = 6
	FilePrefixMaxLen  = 16
	MaxMetaNameLen    = 64
	MaxMetaValueLen   = 256
	StorageIDMaxSize  = 16
	VersionSize       = 8
	IPAddressSize     = 16 // 15 chars + NUL
	PkgLenSize        = 8
	DomainNameMaxSize = 128
)

// Metadata separators
const (
	RecordSeparator byte = '\x01' // between key-value pairs
	FieldSeparator  byte = '\x02' // between key and value
)

// Metadata update flags
const (
	MetaFlagOverwrite byte = 'O' // replace all existing metadata
	MetaFlagMerge     byte = 'M' // merge into existing metadata
)

// Storage server status codes as reported by list-storages
const (
	StorageStatusInit      byte = 0
	StorageStatusWaitSync  byte = 1
	StorageStatusSyncing   byte = 2
	StorageStatusIPChanged byte = 3
	StorageStatusDeleted   byte = 4
	StorageStatusOffline   byte = 5
	StorageStatusOnline    byte = 6
	StorageStatusActive    byte = 7
	StorageStatusRecovery  byte = 9
	StorageStatusNone      byte = 99
)

// Fixed record sizes inside tracker list responses.
const (
	// groupStatSize is one group record: 17 byte name (16 + NUL)
	// followed by 11 big-endian int64 fields.
	groupStatSize = GroupNameMaxLen + 1 + 11*8

	// storageStatSize is one storage record: the identity block
	// (status 1, id 16, ip 16, domain 128, src ip 16, version 8),
	// 10 int64 capacity/config fields, 42 int64 traffic counters and
	// a trailing trunk-server byte.
	storageStatIdentitySize = 1 + StorageIDMaxSize + IPAddressSize + DomainNameMaxSize + IPAddressSize + VersionSize
	storageStatSize         = storageStatIdentitySize + 10*8 + 42*8 + 1
)
