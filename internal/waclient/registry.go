package waclient

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	factoryMu      sync.RWMutex
	defaultFactory Factory
)

// RegisterFactory installs the protocol client factory used by the
// gateway binary. Driver packages call this from an init function and
// get linked in with a blank import, the same way database/sql drivers
// register themselves. Registering twice panics: two drivers in one
// binary is a build mistake.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if defaultFactory != nil {
		panic("waclient: protocol client factory registered twice")
	}
	defaultFactory = f
}

// DefaultFactory returns the registered factory.
func DefaultFactory() (Factory, error) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	if defaultFactory == nil {
		return nil, errors.New("waclient: no protocol client factory registered")
	}
	return defaultFactory, nil
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(instanceID int64, credentialDir string) (Client, error)

func (f FactoryFunc) NewClient(instanceID int64, credentialDir string) (Client, error) {
	return f(instanceID, credentialDir)
}
