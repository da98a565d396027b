package extract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earth911/internal/extract"
	"earth911/internal/facility"
	"earth911/internal/fixture"
	"earth911/internal/logger"
	"earth911/internal/session"
)

const pageURL = "https://search.earth911.com/location/test/"

func loadPage(t *testing.T, body string) *session.Static {
	t.Helper()
	d, err := session.NewStatic(map[string]string{pageURL: body})
	require.NoError(t, err)
	require.NoError(t, d.Load(context.Background(), pageURL))
	return d
}

func loadFixture(t *testing.T, slug string) *session.Static {
	t.Helper()
	d, err := session.NewStatic(fixture.Site(fixture.Listing))
	require.NoError(t, err)
	require.NoError(t, d.Load(context.Background(), fixture.DetailURL(slug)))
	return d
}

func newExtractor() *extract.Extractor {
	return extract.New(extract.DefaultRules(), logger.NewNoOp())
}

func TestExtractFixtures(t *testing.T) {
	testCases := []struct {
		slug string
		want facility.Record
	}{
		{
			slug: "ecodrop-center",
			want: facility.Record{
				Name:              "EcoDrop Center",
				LastUpdated:       "2024-03-01",
				StreetAddress:     "123 Main St, New York, NY 10001",
				MaterialsAccepted: "Electronics, Batteries",
			},
		},
		{
			slug: "green-cycle-depot",
			want: facility.Record{
				Name:              "Green Cycle Depot",
				LastUpdated:       "01/15/2024",
				StreetAddress:     "45 Elm Avenue, Brooklyn, NY 11201",
				MaterialsAccepted: "Computers, Cell Phones",
			},
		},
		{
			slug: "help-desk",
			want: facility.Empty(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.slug, func(t *testing.T) {
			d := loadFixture(t, tc.slug)
			got := newExtractor().Extract(context.Background(), d)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNameRejectsShortAndHelpText(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "five characters is too short",
			body: `<h1>Depot</h1><h2>Recycle Hub</h2>`,
			want: "Recycle Hub",
		},
		{
			name: "help and search text is skipped",
			body: `<h1>Search results</h1><h2>Get HELP now</h2><div class="facility-name">Metro E-Waste</div>`,
			want: "Metro E-Waste",
		},
		{
			name: "help classes are excluded by selector",
			body: `<h1 class="help-heading">Drop-off Guide</h1><p class="title">Borough Recyclers</p>`,
			want: "Borough Recyclers",
		},
		{
			name: "nothing acceptable",
			body: `<h1>Help</h1><p>Brooklyn Recycling</p>`,
			want: facility.Unknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := loadPage(t, tc.body)
			got := newExtractor().Extract(context.Background(), d)
			assert.Equal(t, tc.want, got.Name)
		})
	}
}

func TestLastUpdatedPatternOrder(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "labelled date beats earlier bare date",
			body: `<p>Opened 2001-05-05</p><p>Updated: 2024-02-02</p>`,
			want: "2024-02-02",
		},
		{
			name: "last updated beats updated",
			body: `<p>Updated 2022-01-01</p><p>Last Updated 2023-06-30</p>`,
			want: "2023-06-30",
		},
		{
			name: "bare iso date",
			body: `<p>Opened 2001-05-05</p>`,
			want: "2001-05-05",
		},
		{
			name: "us date is last resort",
			body: `<p>Reviewed 07/04/2023</p>`,
			want: "07/04/2023",
		},
		{
			name: "no date",
			body: `<p>Open daily</p>`,
			want: facility.Unknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := loadPage(t, tc.body)
			got := newExtractor().Extract(context.Background(), d)
			assert.Equal(t, tc.want, got.LastUpdated)
		})
	}
}

func TestAddressNeedsMoreThanTenCharacters(t *testing.T) {
	d := loadPage(t, `<p class="address">1 Main St</p><p class="contact-address">77 Water Street, NY</p>`)

	got := newExtractor().Extract(context.Background(), d)

	assert.Equal(t, "77 Water Street, NY", got.StreetAddress)
}

func TestMaterials(t *testing.T) {
	long := "Household hazardous waste including paints and solvents"
	testCases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "duplicates removed in first seen order",
			body: `<ul class="materials"><li>Glass</li><li>Paper</li><li>Glass</li><li>Metal</li><li>Paper</li></ul>`,
			want: "Glass, Paper, Metal",
		},
		{
			name: "length bounds",
			body: `<ul class="accepted"><li>TV</li><li>` + long + `</li><li>Toner</li></ul>`,
			want: "Toner",
		},
		{
			name: "list items beat sibling text",
			body: `<h3>Accepts</h3><p>Motor Oil</p><ul class="recycled-materials"><li>Tires</li></ul>`,
			want: "Tires",
		},
		{
			name: "sibling fallback",
			body: `<div><span>Recycles</span><em>Printers</em><em>Monitors</em></div>`,
			want: "Printers, Monitors",
		},
		{
			name: "nothing acceptable",
			body: `<ul class="materials"><li>TV</li></ul>`,
			want: facility.Unknown,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := loadPage(t, tc.body)
			got := newExtractor().Extract(context.Background(), d)
			assert.Equal(t, tc.want, got.MaterialsAccepted)
		})
	}
}

func TestInvalidSelectorIsAMiss(t *testing.T) {
	rules := extract.DefaultRules()
	rules.Name = append([]session.Selector{session.CSS("h1[["), session.XPath("//h1[@")}, rules.Name...)
	d := loadPage(t, `<h1>Queens Battery Drop</h1>`)

	got := extract.New(rules, logger.NewNoOp()).Extract(context.Background(), d)

	assert.Equal(t, "Queens Battery Drop", got.Name)
}

func TestExtractWithoutDocument(t *testing.T) {
	d, err := session.NewStatic(nil)
	require.NoError(t, err)

	got := newExtractor().Extract(context.Background(), d)

	assert.Equal(t, facility.Empty(), got)
}
