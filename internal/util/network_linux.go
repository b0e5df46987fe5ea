//go:build linux

package util

import (
	"os"
	"syscall"
)

// Linux kernel VFS magic numbers of network filesystems
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0x517b:     "smb",
	0xfe534d42: "smb2",
	0x564c:     "ncp",
}

func detectPlatformNetwork(path string) (*NetworkInfo, error) {
	info := &NetworkInfo{}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err == nil {
		if proto, found := networkMagic[uint32(stat.Type)]; found {
			info.IsNetwork = true
			info.Protocol = proto
		}
	}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		// Fall back to the magic number check
		return info, nil
	}
	defer f.Close()

	mounts, err := parseMounts(f)
	if err != nil {
		return info, nil
	}

	m := matchMount(path, mounts)
	if info.IsNetwork && !m.IsNetwork {
		m.IsNetwork = true
		m.Protocol = info.Protocol
	}
	return m, nil
}
