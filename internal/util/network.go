package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NetworkInfo contains information about a filesystem's network characteristics
type NetworkInfo struct {
	IsNetwork bool   // Whether the filesystem is network-mounted
	Protocol  string // Protocol (smb, nfs, cifs, etc.) or empty if local
	MountPath string // Mount point of the filesystem
}

// networkFSTypes are mount types treated as network storage
var networkFSTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone", "davfs"}

// DetectNetworkFilesystem checks if a path is on a network-mounted filesystem.
// Recordings synced from a phone often live on SMB/NFS shares, where storage
// calls need a more patient retry profile.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	return detectPlatformNetwork(absPath)
}

// IsNetworkPath checks if a path is on a network filesystem (convenience function)
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

// parseMounts reads /proc/mounts formatted lines into mount point -> fs type
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// device mountpoint fstype options dump pass
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// matchMount finds the longest mount point containing path and classifies it
func matchMount(path string, mounts map[string]string) *NetworkInfo {
	info := &NetworkInfo{}
	best := ""
	for mountPoint, fsType := range mounts {
		if !strings.HasPrefix(path, mountPoint) || len(mountPoint) <= len(best) {
			continue
		}
		if mountPoint != "/" && len(path) > len(mountPoint) && path[len(mountPoint)] != '/' {
			continue
		}
		best = mountPoint
		info.IsNetwork = false
		info.Protocol = ""
		info.MountPath = mountPoint
		lower := strings.ToLower(fsType)
		for _, netType := range networkFSTypes {
			if strings.Contains(lower, netType) {
				info.IsNetwork = true
				info.Protocol = lower
				break
			}
		}
	}
	return info
}
