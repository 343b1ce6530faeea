package moderation

import (
	"chat-relay/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"censored/en.txt":       {Data: []byte("badger\r\n# comment\n\n  weasel \n")},
		"censored/fr.txt":       {Data: []byte("blaireau\nbadger\n")},
		"censored/README.md":    {Data: []byte("ignored")},
		"censored/nested/x.txt": {Data: []byte("ignored")},
	}

	dict, err := NewLoader(fsys).LoadAll("censored")

	req.NoError(err)
	req.Equal([]string{"badger", "blaireau", "weasel"}, dict.Words)
	req.ElementsMatch([]string{"en", "fr"}, dict.Languages)
}

func TestLoader_LoadAll_Empty(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{"censored/en.txt": {Data: []byte("\n# nothing\n")}}

	_, err := NewLoader(fsys).LoadAll("censored")
	req.ErrorIs(err, errors.ErrEmptyWords)

	_, err = NewLoader(fsys).LoadAll("missing")
	req.Error(err)
}
