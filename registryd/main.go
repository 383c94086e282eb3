// Command registryd runs the account registry (§4.6): the external
// collaborator nodes register with at bootstrap and call synchronously
// on every transfer's critical section.
package main

import (
	"os"

	"github.com/cloudflare/cfssl/log"
	"github.com/gin-gonic/gin"

	"github.com/fastestssbc/config"
	"github.com/fastestssbc/registry"
)

func main() {
	cfg, err := config.LoadRegistryConfig()
	if err != nil {
		log.Errorf("load registry config: %v", err)
		os.Exit(1)
	}

	store, err := registry.Open(cfg.DataPath)
	if err != nil {
		log.Errorf("open registry store at %s: %v", cfg.DataPath, err)
		os.Exit(1)
	}
	defer store.Close()

	srv := registry.NewServer(store)
	r := gin.Default()
	srv.Register(r)

	log.Infof("registry listening on %s, data path %s", cfg.ListenAddr, cfg.DataPath)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Errorf("registry listener stopped: %v", err)
		os.Exit(1)
	}
}
