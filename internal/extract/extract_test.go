package extract

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

func acme() crawler.CompanyTarget {
	return crawler.CompanyTarget{
		Name:     "Acme",
		URL:      "https://acme.test/careers",
		Keywords: []string{"intern"},
		Location: "Remote",
	}
}

func TestExtractAcmeListing(t *testing.T) {
	t.Parallel()
	page := crawler.RenderedPage{
		URL:  "https://acme.test/careers",
		HTML: `<html><body><a href="/jobs/42">Software Intern</a><a href="/about">About us</a></body></html>`,
	}

	got := slices.Collect(New(nil).Extract(acme(), page))
	require.Equal(t, []crawler.JobListing{{
		Company:        "Acme",
		Title:          "Software Intern",
		NormalizedLink: "https://acme.test/jobs/42",
		MatchedKeyword: "intern",
		Location:       "Remote",
	}}, got)
}

func TestExtractDedupFirstWins(t *testing.T) {
	t.Parallel()
	target := acme()
	target.Keywords = []string{"engineer", "intern"}
	page := crawler.RenderedPage{
		URL: "https://acme.test/careers/",
		HTML: `
<a href="/jobs/1">data INTERN</a>
<a href="https://acme.test/jobs/1">Engineer (same posting)</a>
<a href="/jobs/1#apply">Apply intern</a>
<a href="/jobs/2">Platform Engineer Intern</a>`,
	}

	got := slices.Collect(New(nil).Extract(target, page))
	require.Len(t, got, 2)
	require.Equal(t, "Data Intern", got[0].Title)
	require.Equal(t, "intern", got[0].MatchedKeyword)
	require.Equal(t, "https://acme.test/jobs/1", got[0].NormalizedLink)
	require.Equal(t, "engineer", got[1].MatchedKeyword, "keywords are tested in configured order")
	require.Equal(t, "https://acme.test/jobs/2", got[1].NormalizedLink)
}

func TestExtractSkipsBlankAndUnresolvable(t *testing.T) {
	t.Parallel()
	page := crawler.RenderedPage{
		URL: "https://acme.test/careers",
		HTML: `
<a href="/jobs/1">   </a>
<a href="">Intern blank href</a>
<a>Intern no href</a>
<a href="mailto:jobs@acme.test">Email intern team</a>
<a href="/jobs/3"><span>Summer</span>
   <span>Intern</span></a>`,
	}

	got := slices.Collect(New(nil).Extract(acme(), page))
	require.Len(t, got, 1)
	require.Equal(t, "Summer Intern", got[0].Title)
	require.Equal(t, "https://acme.test/jobs/3", got[0].NormalizedLink)
}

func TestExtractSequenceIsSingleUse(t *testing.T) {
	t.Parallel()
	page := crawler.RenderedPage{URL: "https://acme.test/careers", HTML: `<a href="/jobs/42">Intern</a>`}
	seq := New(nil).Extract(acme(), page)

	require.Len(t, slices.Collect(seq), 1)
	require.Empty(t, slices.Collect(seq))
}

func TestExtractStopsWhenConsumerStops(t *testing.T) {
	t.Parallel()
	page := crawler.RenderedPage{
		URL:  "https://acme.test/careers",
		HTML: `<a href="/1">Intern A</a><a href="/2">Intern B</a><a href="/3">Intern C</a>`,
	}
	var seen []string
	for listing := range New(nil).Extract(acme(), page) {
		seen = append(seen, listing.NormalizedLink)
		if len(seen) == 2 {
			break
		}
	}
	require.Equal(t, []string{"https://acme.test/1", "https://acme.test/2"}, seen)
}

func TestExtractDefaultsLocationAndBase(t *testing.T) {
	t.Parallel()
	target := acme()
	target.Location = " "
	page := crawler.RenderedPage{HTML: `<a href="jobs/9">Intern</a>`}

	got := slices.Collect(New(nil).Extract(target, page))
	require.Len(t, got, 1)
	require.Equal(t, "Unknown", got[0].Location)
	require.Equal(t, "https://acme.test/jobs/9", got[0].NormalizedLink)
}
