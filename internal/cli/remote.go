package cli

import (
	"flag"
	"fmt"

	"github.com/mrlokans/tastier/internal/config"
	"github.com/mrlokans/tastier/internal/entrypoint"
	"github.com/mrlokans/tastier/internal/logger"
	"github.com/mrlokans/tastier/internal/remote/docstore"
)

// remoteFlags are shared by commands that talk to the remote store. Values
// left empty fall back to the environment configuration.
type remoteFlags struct {
	Driver string
	DSN    string
}

func (f *remoteFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.Driver, "driver", "", "Remote driver: postgres or sqlite (default: REMOTE_DRIVER)")
	fs.StringVar(&f.DSN, "dsn", "", "Remote connection string (default: REMOTE_DSN)")
}

func (f *remoteFlags) open() (*docstore.Store, error) {
	cfg := config.NewConfig()
	if f.Driver != "" {
		cfg.Remote.Driver = config.RemoteDriver(f.Driver)
	}
	if f.DSN != "" {
		cfg.Remote.DSN = f.DSN
	}

	store, err := entrypoint.OpenRemote(cfg, logger.L())
	if err != nil {
		return nil, fmt.Errorf("failed to open remote store: %w", err)
	}
	return store, nil
}
