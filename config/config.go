package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Load read path file to the config object
func Load(path string, config interface{}) error {
	configFile, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "fail to open config file")
	}

	defer configFile.Close()
	return json.NewDecoder(configFile).Decode(config)
}
