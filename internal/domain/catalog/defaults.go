package catalog

import "strings"

// defaultSymptomNames is the initial symptom set shipped with the service.
var defaultSymptomNames = []string{ //nolint:gochecknoglobals // seed data
	"Fever",
	"Cough",
	"Fatigue",
	"Difficulty Breathing",
	"Headache",
	"Body Aches",
	"Sore Throat",
	"Runny Nose",
	"Nausea",
	"Diarrhea",
	"Loss of Taste or Smell",
	"Chest Pain",
	"Dizziness",
	"Vomiting",
	"Abdominal Pain",
	"Joint Pain",
	"Rash",
	"Chills",
	"Sweating",
	"Loss of Appetite",
}

// DefaultSymptoms returns the built-in symptom list with generated descriptions.
func DefaultSymptoms() []Symptom {
	out := make([]Symptom, len(defaultSymptomNames))
	for i, n := range defaultSymptomNames {
		out[i] = Symptom{Name: n, Description: "Patient experiences " + strings.ToLower(n)}
	}
	return out
}

// DefaultDiseases returns the built-in disease list.
func DefaultDiseases() []Disease {
	return []Disease{
		{Name: "Influenza", Description: "Viral infection of the respiratory tract", Severity: SeverityMedium,
			Symptoms: []string{"Fever", "Cough", "Fatigue", "Body Aches", "Headache", "Chills"}},
		{Name: "Common Cold", Description: "Mild viral infection of the nose and throat", Severity: SeverityLow,
			Symptoms: []string{"Runny Nose", "Sore Throat", "Cough", "Fatigue"}},
		{Name: "COVID-19", Description: "Respiratory illness caused by SARS-CoV-2", Severity: SeverityHigh,
			Symptoms: []string{"Fever", "Cough", "Fatigue", "Difficulty Breathing", "Loss of Taste or Smell"}},
		{Name: "Pneumonia", Description: "Infection that inflames the air sacs of the lungs", Severity: SeverityHigh,
			Symptoms: []string{"Fever", "Cough", "Difficulty Breathing", "Chest Pain", "Chills", "Sweating"}},
		{Name: "Gastroenteritis", Description: "Inflammation of the stomach and intestines", Severity: SeverityMedium,
			Symptoms: []string{"Nausea", "Vomiting", "Diarrhea", "Abdominal Pain", "Fever"}},
		{Name: "Migraine", Description: "Recurrent moderate to severe headache", Severity: SeverityMedium,
			Symptoms: []string{"Headache", "Nausea", "Dizziness"}},
		{Name: "Dengue Fever", Description: "Mosquito-borne viral infection", Severity: SeverityHigh,
			Symptoms: []string{"Fever", "Headache", "Joint Pain", "Rash", "Body Aches", "Nausea"}},
		{Name: "Malaria", Description: "Parasitic infection transmitted by mosquitoes", Severity: SeverityCritical,
			Symptoms: []string{"Fever", "Chills", "Sweating", "Headache", "Nausea", "Vomiting"}},
		{Name: "Strep Throat", Description: "Bacterial throat infection", Severity: SeverityMedium,
			Symptoms: []string{"Sore Throat", "Fever", "Headache", "Loss of Appetite"}},
		{Name: "Heart Attack", Description: "Blocked blood flow to the heart muscle", Severity: SeverityCritical,
			Symptoms: []string{"Chest Pain", "Difficulty Breathing", "Sweating", "Nausea", "Dizziness"}},
	}
}
