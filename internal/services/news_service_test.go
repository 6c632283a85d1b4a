package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewsService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	news := NewNewsService(f.repo, 4)

	for _, text := range []string{
		"Accreditation opens on 10 November",
		`<p>Revised <b>schedule</b> is <a href="https://aifsm2025.in/schedule">online</a></p>`,
		"Team managers meeting at 6 PM",
		"Transport desk at Dehradun railway station",
		"  Registration closes soon  ",
	} {
		_, err := news.Post(ctx, text)
		require.NoError(t, err)
	}

	page, err := news.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 4)
	assert.Equal(t, "Registration closes soon", page.Items[0].Text)

	var html bool
	for _, item := range page.Items {
		if item.Text == "Revised schedule is online" {
			html = true
			assert.Equal(t, []string{"https://aifsm2025.in/schedule"}, item.Links)
		}
	}
	assert.True(t, html)

	page, err = news.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Accreditation opens on 10 November", page.Items[0].Text)
}

func TestPlainText(t *testing.T) {
	text, links := plainText("Plain & simple")
	assert.Equal(t, "Plain & simple", text)
	assert.Empty(t, links)

	text, links = plainText("<ul><li>One</li>\n<li><a href='/a'>Two</a></li></ul>")
	assert.Equal(t, "One Two", text)
	assert.Equal(t, []string{"/a"}, links)
}
