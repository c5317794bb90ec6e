package models

// CatalogEntry describes a model available for fine-tuning
type CatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Hardware    []HardwareType `json:"hardware"`
	Precision   []Precision    `json:"precision"`
}

// Catalog returns the models the platform can fine-tune, with the
// hardware and precision combinations each one supports.
func Catalog() []CatalogEntry {
	allHardware := []HardwareType{HardwareTPU, HardwareTrainium, HardwareGPU, HardwareAMD}
	allPrecision := []Precision{PrecisionBFloat16, PrecisionFloat32}

	return []CatalogEntry{
		{
			Name:        "llama3-2-1b",
			Description: "LLaMA 3.2 1B parameters",
			Hardware:    allHardware,
			Precision:   allPrecision,
		},
		{
			Name:        "llama3-2-3b",
			Description: "LLaMA 3.2 3B parameters",
			Hardware:    allHardware,
			Precision:   allPrecision,
		},
		{
			Name:        "llama3-1-8b",
			Description: "LLaMA 3.1 8B parameters",
			Hardware:    []HardwareType{HardwareTPU, HardwareTrainium, HardwareGPU},
			Precision:   allPrecision,
		},
		{
			Name:        "llama3-1-70b",
			Description: "LLaMA 3.1 70B parameters",
			Hardware:    []HardwareType{HardwareTPU, HardwareTrainium},
			Precision:   []Precision{PrecisionBFloat16},
		},
		{
			Name:        "llama3-1-405b",
			Description: "LLaMA 3.1 405B parameters",
			Hardware:    []HardwareType{HardwareTPU, HardwareAMD},
			Precision:   []Precision{PrecisionBFloat16},
		},
	}
}
