// Package services implements the client side of the Meeco protocol: session
// and key establishment, item encryption, connections, shares and the client
// task queue. Every service is built from the remote API it needs plus Deps;
// nothing is cached between calls.
package services

import (
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
)

// Deps are the collaborators shared by all services.
type Deps struct {
	Cryppo cryptox.Cryppo
	Log    logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Cryppo == nil {
		d.Cryppo = cryptox.NewCryppo(0)
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	return d
}
