package sentinel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opensentinel/sentinel/service/mgr"
)

type fakeModule struct {
	startErr error
	started  bool
	stopped  bool
}

func (f *fakeModule) Start(m *mgr.Manager) error {
	f.started = true
	return f.startErr
}

func (f *fakeModule) Stop(m *mgr.Manager) error {
	f.stopped = true
	return nil
}

func TestOptionalModuleSwallowsStartError(t *testing.T) {
	inner := &fakeModule{startErr: errors.New("no privilege")}
	opt := &optionalModule{inner: inner, name: "test module"}

	g := mgr.NewGroup(opt)
	err := g.Start()

	assert.NoError(t, err)
	assert.True(t, inner.started)
}

func TestOptionalModuleStopDelegatesToInner(t *testing.T) {
	inner := &fakeModule{}
	opt := &optionalModule{inner: inner, name: "test module"}

	g := mgr.NewGroup(opt)
	require := assert.New(t)
	require.NoError(g.Start())
	require.True(g.Stop())
	require.True(inner.stopped)
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	s := New(t.TempDir())
	assert.True(t, s.Stop())
}
