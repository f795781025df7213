package main

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nicholasgasior/docflip-go"
	"github.com/nicholasgasior/docflip-go/internal/config"
	"github.com/nicholasgasior/docflip-go/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     zerolog.Logger
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
		logger:        zerolog.Nop(),
	}
}

// ensureConfig loads the configuration and builds the logger once per
// process. Log flags win over the file and the environment.
func (c *commandContext) ensureConfig(logOut io.Writer) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if v := flagValue(c.logLevelFlag); v != "" {
			cfg.Log.Level = v
		}
		if v := flagValue(c.logFormatFlag); v != "" {
			cfg.Log.Format = v
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Out:    logOut,
		})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func (c *commandContext) newEngine() *docflip.Engine {
	return docflip.New(c.config.EngineOptions(c.logger)...)
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
