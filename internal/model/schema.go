package model

// Default column names of the concession workbook.
const (
	ColName    = "Nom"
	ColCompany = "Compagnie"
	ColPhase   = "Phases_actuelle"
	ColComment = "Commentaires1"

	ColSignatureDate  = "Date_de_signature_de_contrats"
	ColEffectiveDate  = "Date_d_entrée_en_vigeur"
	ColPhaseStartDate = "Date_de_debut_de_la_phase"
	ColPhaseEndDate   = "Date_de_la_fin_de_la_phase"
)

// DefaultDateColumns lists the columns coerced to dates on load.
var DefaultDateColumns = []string{
	ColSignatureDate,
	ColEffectiveDate,
	ColPhaseStartDate,
	ColPhaseEndDate,
	"Date_du_dernier_MCM",
	"Dernier_Paiement_de_frais_de_Formation",
	"Dernier_Paiement_de_frais_d_Administration",
	"Dernier_Dépôt",
	"Date_de_Signature",
}

// Schema names the columns the core gives meaning to.
type Schema struct {
	NameColumn    string
	CompanyColumn string
	PhaseColumn   string
	CommentColumn string

	SignatureColumn  string
	EffectiveColumn  string
	PhaseStartColumn string
	PhaseEndColumn   string

	DateColumns []string

	// GeometryNameField is the shapefile attribute holding the block name.
	GeometryNameField string
}

// DefaultSchema returns the schema of the concession workbook.
func DefaultSchema() Schema {
	return Schema{
		NameColumn:        ColName,
		CompanyColumn:     ColCompany,
		PhaseColumn:       ColPhase,
		CommentColumn:     ColComment,
		SignatureColumn:   ColSignatureDate,
		EffectiveColumn:   ColEffectiveDate,
		PhaseStartColumn:  ColPhaseStartDate,
		PhaseEndColumn:    ColPhaseEndDate,
		DateColumns:       append([]string(nil), DefaultDateColumns...),
		GeometryNameField: ColName,
	}
}

// IsDate reports whether col is a date column.
func (s Schema) IsDate(col string) bool {
	for _, c := range s.DateColumns {
		if c == col {
			return true
		}
	}
	return false
}
