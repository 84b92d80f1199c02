package service

import (
	"context"
	"fmt"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// FixtureOrganization is the organization the example catalog is seeded for
const FixtureOrganization = "123456789"

const (
	fixtureImage = "https://utrecht.trouwplanner.online/images/content/ambtenaar/erik.jpg"
	fixtureFilm  = "https://www.youtube.com/embed/DAaoMvj1Qbs"
)

type fixture struct {
	name        string
	priceExcl   int64
	summary     string
	description string
}

var weddingFixtures = []fixture{
	{
		name:      "Gratis Trouwen",
		priceExcl: 0,
		summary:   "Inclusief locatie & trouwambtenaar",
		description: `<ul class="tbl-prc-list">
	<li>Locatie: Stadskantoor Utrecht, 6e verdieping</li>
	<li>Maandagochtend 10 uur of 10.30 uur</li>
	<li>Zonder ceremonie, zonder toespraak</li>
	<li>Duur: tot 10 minuten</li>
	<li>Aantal gasten: tot 8 personen (incl. getuigen en fotograaf)</li>
</ul>`,
	},
	{
		name:      "Eenvoudig Trouwen",
		priceExcl: 16300,
		summary:   "Inclusief locatie & trouwambtenaar",
		description: `<ul class="tbl-prc-list">
	<li>Locatie: Stadskantoor Utrecht, 6e verdieping</li>
	<li>Maandag, dinsdag, woensdag, vrijdag om 10 uur, 10.30 uur, 11 uur of 11.30 uur</li>
	<li>Zonder ceremonie, zonder toespraak</li>
	<li>Duur: tot 10 minuten</li>
	<li>Aantal gasten: tot 8 personen (incl. getuigen en fotograaf)</li>
</ul>`,
	},
	{
		name:      "Uitgebreid Trouwen v.a.",
		priceExcl: 49000,
		summary:   "vanaf prijs, exclusief locatie",
		description: `<ul class="tbl-prc-list">
	<li>Locatie: uw eigen keuze</li>
	<li>7 dagen per week, 24 uur per dag</li>
	<li>Ceremonie naar eigen wens in te vullen</li>
	<li>Overleg met trouwambtenaar</li>
	<li>Duur: tot 45 minuten</li>
	<li>Aantal gasten: afhankelijk van de gekozen locatie</li>
</ul>`,
	},
}

// LoadFixtures seeds the wedding packages for organization. Packages already
// present (matched by slug identifier) are left alone, so loading twice is
// harmless. It returns the packages in fixture order.
func (s *CatalogService) LoadFixtures(ctx context.Context, organization string) ([]*models.Product, error) {
	if organization == "" {
		organization = FixtureOrganization
	}

	out := make([]*models.Product, 0, len(weddingFixtures))
	created := 0
	for _, f := range weddingFixtures {
		identifier := slug.Make(f.name)

		existing, err := s.store.GetProductByIdentifier(ctx, organization, identifier)
		if err != nil {
			return nil, fmt.Errorf("failed to look up fixture %s: %w", identifier, err)
		}
		if existing != nil {
			out = append(out, existing)
			continue
		}

		image, film := fixtureImage, fixtureFilm
		p := models.NewProduct(organization, models.ProductTypeSimple)
		p.Identifier = identifier
		p.StandalonePurchasable = true
		p.ImageURL = &image
		p.VideoURL = &film
		p.Name = f.name
		p.Summary = f.summary
		p.Description = f.description
		p.SetPriceExcl(f.priceExcl)

		if err := s.createProduct(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to load fixture %s: %w", identifier, err)
		}
		out = append(out, p)
		created++
	}

	s.logger.Info("Fixtures loaded",
		zap.String("organization", organization),
		zap.Int("created", created),
		zap.Int("existing", len(weddingFixtures)-created))
	return out, nil
}
