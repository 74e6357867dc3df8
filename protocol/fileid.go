package protocol

import (
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/goFDFS/common"
)

// SplitFileID splits a file ID of the form "group/remote-path"
// (e.g. "group1/M00/00/00/wKgBcFxyz.dat") into its components.
func SplitFileID(fileID string) (group, path string, err error) {
	if fileID == "" {
		return "", "", common.ErrInvalidFileID
	}

	parts := strings.SplitN(fileID, "/", 2)
	if len(parts) != 2 {
		return "", "", common.ErrInvalidFileID
	}

	group, path = parts[0], parts[1]
	if group == "" || len(group) > GroupNameMaxLen || path == "" {
		return "", "", common.ErrInvalidFileID
	}
	return group, path, nil
}

// JoinFileID is the inverse of SplitFileID.
func JoinFileID(group, path string) string {
	return group + "/" + path
}

// ExtName extracts the file extension from a filename, without the
// leading dot, truncated to the protocol maximum of 6 bytes.
func ExtName(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	if len(ext) > FileExtNameMaxLen {
		ext = ext[:FileExtNameMaxLen]
	}
	return ext
}
