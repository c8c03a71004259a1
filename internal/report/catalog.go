// Package report slices attribute tables into the titled sections of a
// concession report.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SectionID identifies one report section.
type SectionID string

// Report sections, in display order.
const (
	SectionCompany     SectionID = "company"
	SectionSituation   SectionID = "situation"
	SectionCommercial  SectionID = "commercial"
	SectionObligations SectionID = "obligations"
	SectionMeetings    SectionID = "meetings"
	SectionFinancial   SectionID = "financial"
	SectionAmendments  SectionID = "amendments"
)

// Section declares a report section and the ordered columns it may show.
type Section struct {
	ID      SectionID `yaml:"id" json:"id"`
	Title   string    `yaml:"title" json:"title"`
	Columns []string  `yaml:"columns" json:"columns"`
}

// Has reports whether col is declared by the section.
func (s Section) Has(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Catalog is the ordered list of report sections.
type Catalog struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// DefaultCatalog returns the seven sections of the concession report.
func DefaultCatalog() Catalog {
	return Catalog{Sections: []Section{
		{
			ID:    SectionCompany,
			Title: "A propos de la compagnie",
			Columns: []string{
				"Compagnie", "Nom", "ID", "Coordonée_X", "Coordonée_Y",
				"Date_de_signature_de_contrats", "Date_d_entrée_en_vigeur",
			},
		},
		{
			ID:    SectionSituation,
			Title: "Situation Actuelle",
			Columns: []string{
				"Phases_actuelle", "Date_de_debut_de_la_phase", "Date_de_la_fin_de_la_phase",
				"Situation_et_Activités_en_cours", "Travaux_déjà_réalisés", "Commentaires1",
			},
		},
		{
			ID:    SectionCommercial,
			Title: "Termes Commerciaux dans le contrat",
			Columns: []string{
				"Cost_Recovery_Limit_(%)", "Overhead_(%)", "Frais_d_Administration_(M_$)",
				"Frais_de_Formation_(M_$)", "Bonus_de_Production_(M_$)",
				"Partage_de_Production_Pétrole_(Part_du_Gouvernement)",
				"Partage_de_Production_Gaz_(Part_du_Gouvernement)",
			},
		},
		{
			ID:    SectionObligations,
			Title: "Obligations Contractuelles",
			Columns: []string{
				"Obligation_de_Travaux", "Obligation_de_Rendu_(%)", "Obligation_de_Banque_Garantie_(M_$)",
				"Travaux_réalisées", "Rendu_réalisé_(%)", "Banque_Garantie_déposées_(M_$)", "Commentaires2",
			},
		},
		{
			ID:    SectionMeetings,
			Title: "MCM et TCM",
			Columns: []string{
				"Date_du_dernier_MCM", "Lieu", "Motifs", "Résolution",
				"PTA_&_Budget", "Réalisation_budgetaire", "Commentaires3",
			},
		},
		{
			ID:    SectionFinancial,
			Title: "Obligations Financières",
			Columns: []string{
				"Frais_de_Formation", "Dernier_Paiement_de_frais_de_Formation",
				"Frais_d_Administration", "Dernier_Paiement_de_frais_d_Administration",
				"Garantie_Bancaire", "Dernier_Dépôt", "Observations",
			},
		},
		{
			ID:    SectionAmendments,
			Title: "Avenants",
			Columns: []string{
				"Dernier_Avenant", "Date_de_Signature", "Motifs_Avenant", "Statut",
			},
		},
	}}
}

// Lookup returns the section with the given id.
func (c Catalog) Lookup(id SectionID) (Section, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// IDs returns the section ids in catalog order.
func (c Catalog) IDs() []SectionID {
	ids := make([]SectionID, len(c.Sections))
	for i, s := range c.Sections {
		ids[i] = s.ID
	}
	return ids
}

// Validate checks that ids are unique and that every section has a title
// and a non-empty list of distinct columns.
func (c Catalog) Validate() error {
	if len(c.Sections) == 0 {
		return eris.New("report: catalog has no sections")
	}

	var problems []string
	ids := make(map[SectionID]bool, len(c.Sections))
	for i, s := range c.Sections {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("section %d has no id", i))
		case ids[s.ID]:
			problems = append(problems, "duplicate section id "+string(s.ID))
		}
		ids[s.ID] = true

		if strings.TrimSpace(s.Title) == "" {
			problems = append(problems, "section "+string(s.ID)+" has no title")
		}
		if len(s.Columns) == 0 {
			problems = append(problems, "section "+string(s.ID)+" has no columns")
		}
		cols := make(map[string]bool, len(s.Columns))
		for _, col := range s.Columns {
			if cols[col] {
				problems = append(problems, "section "+string(s.ID)+" repeats column "+col)
			}
			cols[col] = true
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("report: invalid catalog: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadCatalog reads a catalog from a YAML file and validates it.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, eris.Wrapf(err, "report: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, eris.Wrap(err, "report: parse catalog")
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// YAML encodes the catalog in the format read by LoadCatalog.
func (c Catalog) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, eris.Wrap(err, "report: encode catalog")
	}
	return data, nil
}
