package mesh

import (
	"sort"

	"github.com/helixir/medical-research-service/internal/domain"
)

// seedMappings maps common clinical terms, as typed by users, to their
// official descriptor labels. Seeded lookups resolve without a network call
// and are persisted like fetched ones so later lookups hit the cache.
var seedMappings = map[string]string{
	// Cardiovascular
	"high blood pressure":     "Hypertension",
	"hypertension":            "Hypertension",
	"heart attack":            "Myocardial Infarction",
	"myocardial infarction":   "Myocardial Infarction",
	"heart failure":           "Heart Failure",
	"irregular heartbeat":     "Arrhythmias, Cardiac",
	"arrhythmia":              "Arrhythmias, Cardiac",
	"chest pain":              "Chest Pain",
	"stroke":                  "Stroke",
	"atrial fibrillation":     "Atrial Fibrillation",
	"coronary artery disease": "Coronary Artery Disease",

	// Diabetes
	"diabetes":           "Diabetes Mellitus",
	"type 2 diabetes":    "Diabetes Mellitus, Type 2",
	"type 1 diabetes":    "Diabetes Mellitus, Type 1",
	"high blood sugar":   "Hyperglycemia",
	"low blood sugar":    "Hypoglycemia",
	"insulin resistance": "Insulin Resistance",
	"hba1c":              "Glycated Hemoglobin A",
	"metformin":          "Metformin",
	"sglt2":              "Sodium-Glucose Transporter 2 Inhibitors",
	"sglt2 inhibitors":   "Sodium-Glucose Transporter 2 Inhibitors",

	// Oncology
	"cancer":          "Neoplasms",
	"tumor":           "Neoplasms",
	"breast cancer":   "Breast Neoplasms",
	"lung cancer":     "Lung Neoplasms",
	"colon cancer":    "Colonic Neoplasms",
	"prostate cancer": "Prostatic Neoplasms",
	"chemotherapy":    "Antineoplastic Agents",
	"immunotherapy":   "Immunotherapy",

	// Respiratory
	"asthma":     "Asthma",
	"copd":       "Pulmonary Disease, Chronic Obstructive",
	"pneumonia":  "Pneumonia",
	"bronchitis": "Bronchitis",

	// Infectious disease
	"infection":   "Infection",
	"covid":       "COVID-19",
	"coronavirus": "COVID-19",
	"flu":         "Influenza, Human",
	"influenza":   "Influenza, Human",
	"antibiotic":  "Anti-Bacterial Agents",
	"antiviral":   "Antiviral Agents",

	// Mental health
	"depression":    "Depressive Disorder",
	"anxiety":       "Anxiety Disorders",
	"schizophrenia": "Schizophrenia",
	"bipolar":       "Bipolar Disorder",
	"ptsd":          "Stress Disorders, Post-Traumatic",

	// Pain
	"pain":         "Pain",
	"headache":     "Headache",
	"migraine":     "Migraine Disorders",
	"back pain":    "Back Pain",
	"chronic pain": "Chronic Pain",

	// Dental
	"tooth decay":    "Dental Caries",
	"gum disease":    "Periodontal Diseases",
	"periodontitis":  "Periodontitis",
	"gingivitis":     "Gingivitis",
	"toothache":      "Toothache",
	"oral health":    "Oral Health",
	"dental implant": "Dental Implants",

	// Outcomes
	"mortality":       "Mortality",
	"survival":        "Survival Rate",
	"quality of life": "Quality of Life",
	"adverse effects": "Drug-Related Side Effects and Adverse Reactions",
	"side effects":    "Drug-Related Side Effects and Adverse Reactions",
}

// seedDescriptor builds a descriptor for a seeded term, or nil if the term
// has no seed mapping. Alternate labels are the other seed terms that map to
// the same label, so synonym lookups resolve to the same descriptor.
func seedDescriptor(normalizedTerm string) *domain.MeshDescriptor {
	label, ok := seedMappings[normalizedTerm]
	if !ok {
		return nil
	}

	d := domain.NewMeshDescriptor(label)
	for term, l := range seedMappings {
		if l == label && term != normalizedTerm && term != domain.NormalizeMeshTerm(label) {
			d.AlternateLabels = append(d.AlternateLabels, term)
		}
	}
	sort.Strings(d.AlternateLabels)
	return d
}
