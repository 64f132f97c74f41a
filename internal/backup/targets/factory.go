package targets

import (
	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/conf"
)

// New builds the upload target described by settings.
func New(s *conf.UploadSettings) (backup.Target, error) {
	switch s.Type {
	case conf.UploadTypeLocal, "":
		return NewLocalTarget(s.Path)
	case conf.UploadTypeFTP:
		return NewFTPTarget(&FTPTargetConfig{
			Host:     s.Host,
			Port:     s.Port,
			Username: s.Username,
			Password: s.Password,
			BasePath: s.Path,
			Timeout:  s.Timeout,
		})
	case conf.UploadTypeSFTP:
		return NewSFTPTarget(&SFTPTargetConfig{
			Host:           s.Host,
			Port:           s.Port,
			Username:       s.Username,
			Password:       s.Password,
			KeyFile:        s.KeyFile,
			KnownHostsFile: s.KnownHostsFile,
			BasePath:       s.Path,
			Timeout:        s.Timeout,
		})
	default:
		return nil, configError("upload", "unknown target type "+s.Type)
	}
}
