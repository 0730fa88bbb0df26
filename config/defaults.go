package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

const (
	EnvPrefix         = "DOCKET_"
	DefaultConfigPath = "~/.docket-watcher/config.yaml"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"storage": map[string]interface{}{
			"db_path":      "~/.docket-watcher/docket.db",
			"archive_path": "~/.docket-watcher/archive.db",
		},
		"scheduler": map[string]interface{}{
			"interval": "1m",
			"slack":    "12h",
			"timezone": "Local",
			"windows": map[string]interface{}{
				"morning": map[string]interface{}{"start": 9, "end": 12},
				"evening": map[string]interface{}{"start": 17, "end": 18},
			},
		},
		"notify": map[string]interface{}{
			"timeout":  "10s",
			"channels": []string{"desktop", "banner"},
			"desktop": map[string]interface{}{
				"permission": "default",
				"title":      "Docket Watcher",
			},
			"email": map[string]interface{}{
				"smtp_host":  "smtp.gmail.com",
				"smtp_port":  "587",
				"username":   "",
				"password":   "",
				"from":       "",
				"recipients": []string{},
			},
			"webhook": map[string]interface{}{
				"url": "",
			},
		},
		"web": map[string]interface{}{
			"enabled": false,
			"addr":    "127.0.0.1:8080",
		},
		"log": map[string]interface{}{
			"level": "info",
			"file":  "",
		},
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}
