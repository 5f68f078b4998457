package main

import (
	"strings"
	"sync"

	"voxport/internal/client"
	"voxport/internal/config"
)

type commandContext struct {
	addrFlag   *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(addrFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		addrFlag:   addrFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// dialClient builds the API client from flags, falling back to the
// configured bind address. The command works without a config file when
// --addr is given.
func (c *commandContext) dialClient() (*client.Client, error) {
	addr := ""
	token := ""
	if c.addrFlag != nil {
		addr = strings.TrimSpace(*c.addrFlag)
	}
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}

	if addr == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err == nil && cfg != nil {
			if addr == "" {
				addr = cfg.Paths.APIBind
			}
			if token == "" {
				token = cfg.Paths.APIToken
			}
		} else if addr == "" {
			return nil, err
		}
	}

	return client.New(addr, token)
}
