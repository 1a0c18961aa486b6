package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromeSessionPage(t *testing.T) {
	tab, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &ChromeSession{tab: tab}

	page, err := s.Page(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, page)

	// Chrome exiting cancels the tab context
	cancel()
	_, err = s.Page(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	s = &ChromeSession{tab: context.Background()}
	require.NoError(t, s.Close())
	_, err = s.Page(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
