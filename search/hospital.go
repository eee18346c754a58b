package search

// Entity type names of the hospital schema.
const (
	Patients       = "patients"
	MedicalRecords = "medical_records"
	Prescriptions  = "prescriptions"
	LabTests       = "lab_tests"
	Appointments   = "appointments"
	Bills          = "bills"
	Users          = "users"
	Wards          = "wards"
)

var (
	patientRelation   = Relation{Entity: Patients, ForeignKey: "patient_id"}
	doctorRelation    = Relation{Entity: Users, ForeignKey: "doctor_id"}
	timestampColumns  = []string{"created_at", "updated_at"}
	patientNameFields = []string{"patient.first_name", "patient.last_name"}
)

func withTimestamps(columns ...string) []string {
	return append(columns, timestampColumns...)
}

// HospitalSchema returns the entity types of the hospital records backend.
func HospitalSchema() *Schema {
	return MustSchema(
		Entity{
			Name:        Patients,
			Table:       "patients",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "gender",
			Columns: withTimestamps("id", "first_name", "last_name", "email", "phone", "date_of_birth",
				"gender", "address", "emergency_contact", "emergency_phone", "medical_history",
				"allergies", "current_medications", "insurance_info", "scheme_id", "is_active", "created_by_id"),
			SearchFields: []string{"first_name", "last_name", "email", "phone"},
			FilterFields: []string{"gender", "is_active", "scheme_id", "created_by_id"},
			OrderFields:  []string{"id", "first_name", "last_name", "date_of_birth", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"created_by": {Entity: Users, ForeignKey: "created_by_id"},
			},
		},
		Entity{
			Name:        MedicalRecords,
			Table:       "medical_records",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "record_type",
			Columns: withTimestamps("id", "patient_id", "doctor_id", "appointment_id", "record_type", "title",
				"description", "diagnosis", "treatment", "medications", "lab_results", "file_attachments"),
			SearchFields: append([]string{"title", "description", "diagnosis"}, patientNameFields...),
			FilterFields: []string{"patient_id", "doctor_id", "appointment_id", "record_type"},
			OrderFields:  []string{"id", "title", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"patient":     patientRelation,
				"doctor":      doctorRelation,
				"appointment": {Entity: Appointments, ForeignKey: "appointment_id"},
			},
		},
		Entity{
			Name:        Prescriptions,
			Table:       "prescriptions",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "status",
			Columns: withTimestamps("id", "patient_id", "doctor_id", "medication_name", "dosage", "frequency",
				"duration", "quantity", "status", "instructions"),
			SearchFields: append([]string{"medication_name", "dosage", "instructions"}, patientNameFields...),
			FilterFields: []string{"patient_id", "doctor_id", "status"},
			OrderFields:  []string{"id", "medication_name", "quantity", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"patient": patientRelation,
				"doctor":  doctorRelation,
			},
		},
		Entity{
			Name:        LabTests,
			Table:       "lab_tests",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "status",
			Columns: withTimestamps("id", "patient_id", "doctor_id", "test_name", "test_type", "status",
				"result", "normal_range", "notes", "ordered_date", "completed_date"),
			SearchFields: append([]string{"test_name", "test_type"}, patientNameFields...),
			FilterFields: []string{"patient_id", "doctor_id", "status", "test_type"},
			OrderFields:  []string{"id", "test_name", "ordered_date", "completed_date", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"patient": patientRelation,
				"doctor":  doctorRelation,
			},
		},
		Entity{
			Name:        Appointments,
			Table:       "appointments",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "status",
			Columns: withTimestamps("id", "patient_id", "doctor_id", "appointment_date", "duration_minutes",
				"status", "appointment_type", "notes", "symptoms", "diagnosis", "treatment_plan"),
			SearchFields: append([]string{"appointment_type", "notes", "symptoms", "diagnosis"}, patientNameFields...),
			FilterFields: []string{"patient_id", "doctor_id", "status", "appointment_type"},
			OrderFields:  []string{"id", "appointment_date", "duration_minutes", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"patient": patientRelation,
				"doctor":  doctorRelation,
			},
		},
		Entity{
			Name:        Bills,
			Table:       "bills",
			Identity:    "id",
			Recency:     "created_at",
			StatusField: "status",
			Columns: withTimestamps("id", "patient_id", "bill_number", "total_amount", "paid_amount", "status",
				"due_date", "description", "items"),
			SearchFields: append([]string{"bill_number", "description"}, patientNameFields...),
			FilterFields: []string{"patient_id", "status"},
			OrderFields:  []string{"id", "bill_number", "total_amount", "paid_amount", "due_date", "created_at", "updated_at"},
			Relations: map[string]Relation{
				"patient": patientRelation,
			},
		},
		Entity{
			Name:         Users,
			Table:        "users",
			Identity:     "id",
			Recency:      "created_at",
			StatusField:  "role",
			Columns:      withTimestamps("id", "email", "password", "first_name", "last_name", "role", "is_active"),
			Hidden:       []string{"password"},
			SearchFields: []string{"first_name", "last_name", "email"},
			FilterFields: []string{"role", "is_active"},
			OrderFields:  []string{"id", "first_name", "last_name", "email", "created_at", "updated_at"},
		},
		Entity{
			Name:         Wards,
			Table:        "wards",
			Identity:     "id",
			Recency:      "created_at",
			StatusField:  "type",
			Columns:      withTimestamps("id", "name", "type", "capacity", "current_occupancy", "floor", "description", "is_active"),
			SearchFields: []string{"name", "type", "description"},
			FilterFields: []string{"type", "is_active", "floor"},
			OrderFields:  []string{"id", "name", "capacity", "current_occupancy", "floor", "created_at", "updated_at"},
		},
	)
}
