package application

import (
	"github.com/luxfi/log"
	"github.com/spf13/viper"
)

// Vault is the application context shared by every command
type Vault struct {
	Log    log.Logger
	Config *viper.Viper
}

// New creates a new Vault application instance
func New() *Vault {
	return &Vault{}
}

// Setup initializes the application with dependencies
func (v *Vault) Setup(logger log.Logger, config *viper.Viper) {
	v.Log = logger
	v.Config = config
}
