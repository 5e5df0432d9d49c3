package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin     = common.HexToAddress("0xad")
	submitter = common.HexToAddress("0x5b")
	newcomer  = common.HexToAddress("0x77")
)

func TestNew_SeedsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "principals.json")

	r, err := New(Config{FilePath: path, AutoSave: true}, []common.Address{admin}, []common.Address{submitter})
	require.NoError(t, err)
	assert.True(t, r.IsAdministrator(admin))
	assert.False(t, r.IsAdministrator(submitter))
	assert.True(t, r.IsAuthorizedSubmitter(submitter))
	assert.False(t, r.IsPaused())

	require.NoError(t, r.RegisterSubmitter(newcomer))
	assert.Equal(t, ErrAlreadyRegistered, r.RegisterSubmitter(newcomer))
	assert.Equal(t, ErrZeroAddress, r.RegisterSubmitter(common.Address{}))
	require.NoError(t, r.SetPaused(true))

	// Seeds are ignored once the file exists.
	reopened, err := New(Config{FilePath: path}, []common.Address{newcomer}, nil)
	require.NoError(t, err)
	assert.True(t, reopened.IsAdministrator(admin))
	assert.False(t, reopened.IsAdministrator(newcomer))
	assert.True(t, reopened.IsAuthorizedSubmitter(newcomer))
	assert.True(t, reopened.IsPaused())
}

func TestNew_RequiresAdministrator(t *testing.T) {
	_, err := New(Config{FilePath: filepath.Join(t.TempDir(), "principals.json")}, nil, nil)
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.json")

	tests := map[string]string{
		"not json":          `{`,
		"no administrators": `{"administrators":[],"submitters":[]}`,
		"zero submitter":    `{"administrators":["0x00000000000000000000000000000000000000ad"],"submitters":["0x0000000000000000000000000000000000000000"]}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := New(Config{FilePath: path}, []common.Address{admin}, nil)
			assert.Error(t, err)
		})
	}
}

func TestWithoutAutoSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.json")

	r, err := New(Config{FilePath: path}, []common.Address{admin}, nil)
	require.NoError(t, err)
	require.NoError(t, r.RegisterSubmitter(newcomer))

	reopened, err := New(Config{FilePath: path}, nil, nil)
	require.NoError(t, err)
	assert.False(t, reopened.IsAuthorizedSubmitter(newcomer))

	require.NoError(t, r.Save())
	require.NoError(t, reopened.Load())
	assert.True(t, reopened.IsAuthorizedSubmitter(newcomer))
}
