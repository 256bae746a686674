// Package records provides access to the scheduled-service records that
// drive outbound confirmation calls.
//
// Records live in a headered CSV file exported from the operations
// spreadsheet. The file is loaded once; status updates rewrite the file
// after saving a timestamped backup.
package records

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
	"github.com/BTreeMap/TransportMedAgent/internal/util"
)

// Column names as they appear in the operations spreadsheet export.
var requiredColumns = []string{
	"nombre_paciente", "apellido_paciente", "tipo_documento", "numero_documento",
	"eps", "telefono", "tipo_servicio", "fecha_servicio", "hora_servicio",
	"destino_centro_salud", "modalidad_transporte", "direccion_completa",
	"estado_confirmacion",
}

// ServiceRecord is one scheduled transport service awaiting confirmation.
type ServiceRecord struct {
	PatientFirstName    string
	PatientLastName     string
	DocumentType        string
	DocumentNumber      string
	EPS                 string
	Department          string
	City                string
	Phone               string
	FamilyContactName   string
	FamilyRelationship  string
	ServiceType         string
	TreatmentType       string
	Frequency           string
	ServiceDates        string // comma-separated
	ServiceTime         string
	DestinationFacility string
	TransportModality   string // RUTA or DESEMBOLSO
	PickupZone          string
	PickupAddress       string
	Observations        string
	ConfirmationStatus  string
	RowIndex            int
}

// FullName returns the patient's complete name.
func (r *ServiceRecord) FullName() string {
	return strings.TrimSpace(r.PatientFirstName + " " + r.PatientLastName)
}

// ContactName returns who to ask for on the phone: the family contact when
// present, otherwise the patient.
func (r *ServiceRecord) ContactName() string {
	if r.FamilyContactName != "" {
		return r.FamilyContactName
	}
	return r.FullName()
}

// Source is the service-record lookup and writeback contract.
type Source interface {
	FindByPhone(phone string) (*ServiceRecord, error)
	PendingRecords() []*ServiceRecord
	UpdateStatus(rowIndex int, status, observation string) error
}

// CSVSource implements Source over a local CSV file.
type CSVSource struct {
	mu      sync.Mutex
	path    string
	header  []string
	colIdx  map[string]int
	rows    [][]string
	byPhone map[string]int // normalized phone -> row index
}

// NewCSVSource loads the record file and indexes rows by phone number.
func NewCSVSource(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("CSVSource: failed to open records file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		slog.Error("CSVSource: failed to parse records file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("records file %s is empty", path)
	}

	header := all[0]
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, fmt.Errorf("records file %s missing column %q", path, col)
		}
	}

	src := &CSVSource{
		path:    path,
		header:  header,
		colIdx:  colIdx,
		rows:    all[1:],
		byPhone: make(map[string]int),
	}
	for i, row := range src.rows {
		phone := util.NormalizePhone(src.field(row, "telefono"))
		if len(phone) == 10 {
			src.byPhone[phone] = i
		} else {
			slog.Warn("CSVSource: row with invalid phone skipped from index", "row", i, "phone_digits", len(phone))
		}
	}
	slog.Debug("CSVSource: records loaded", "path", path, "rows", len(src.rows), "indexed", len(src.byPhone))
	return src, nil
}

// field reads a named column from a row, tolerating short rows.
func (s *CSVSource) field(row []string, col string) string {
	idx, ok := s.colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (s *CSVSource) recordAt(i int) *ServiceRecord {
	row := s.rows[i]
	return &ServiceRecord{
		PatientFirstName:    s.field(row, "nombre_paciente"),
		PatientLastName:     s.field(row, "apellido_paciente"),
		DocumentType:        s.field(row, "tipo_documento"),
		DocumentNumber:      s.field(row, "numero_documento"),
		EPS:                 s.field(row, "eps"),
		Department:          s.field(row, "departamento"),
		City:                s.field(row, "ciudad"),
		Phone:               util.NormalizePhone(s.field(row, "telefono")),
		FamilyContactName:   s.field(row, "nombre_familiar"),
		FamilyRelationship:  s.field(row, "parentesco"),
		ServiceType:         s.field(row, "tipo_servicio"),
		TreatmentType:       s.field(row, "tipo_tratamiento"),
		Frequency:           s.field(row, "frecuencia"),
		ServiceDates:        s.field(row, "fecha_servicio"),
		ServiceTime:         s.field(row, "hora_servicio"),
		DestinationFacility: s.field(row, "destino_centro_salud"),
		TransportModality:   s.field(row, "modalidad_transporte"),
		PickupZone:          s.field(row, "zona_recogida"),
		PickupAddress:       s.field(row, "direccion_completa"),
		Observations:        s.field(row, "observaciones_especiales"),
		ConfirmationStatus:  s.field(row, "estado_confirmacion"),
		RowIndex:            i,
	}
}

// FindByPhone returns the record for a subscriber number.
func (s *CSVSource) FindByPhone(phone string) (*ServiceRecord, error) {
	normalized := util.NormalizePhone(phone)
	if len(normalized) != 10 {
		return nil, models.ErrInvalidPhoneNumber
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byPhone[normalized]
	if !ok {
		slog.Debug("CSVSource.FindByPhone: not found", "phone", normalized)
		return nil, models.ErrRecordNotFound
	}
	return s.recordAt(i), nil
}

// PendingRecords returns records still awaiting confirmation.
func (s *CSVSource) PendingRecords() []*ServiceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*ServiceRecord
	for i := range s.rows {
		if s.field(s.rows[i], "estado_confirmacion") == models.StatusPending {
			pending = append(pending, s.recordAt(i))
		}
	}
	return pending
}

// UpdateStatus sets the confirmation status of a row and appends an
// observation entry, then rewrites the file after saving a backup copy.
func (s *CSVSource) UpdateStatus(rowIndex int, status, observation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rowIndex < 0 || rowIndex >= len(s.rows) {
		return fmt.Errorf("%w: row %d", models.ErrRecordNotFound, rowIndex)
	}

	s.setField(rowIndex, "estado_confirmacion", status)
	if observation != "" {
		entry := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04"), observation)
		current := s.field(s.rows[rowIndex], "observaciones_especiales")
		if current != "" {
			entry = current + " | " + entry
		}
		s.setField(rowIndex, "observaciones_especiales", entry)
	}

	if err := s.flush(); err != nil {
		return err
	}
	slog.Info("CSVSource.UpdateStatus: record updated", "row", rowIndex, "status", status)
	return nil
}

// setField writes a named column in a row, growing the row when the column
// exists in the header but the row is short.
func (s *CSVSource) setField(rowIndex int, col, value string) {
	idx, ok := s.colIdx[col]
	if !ok {
		return
	}
	row := s.rows[rowIndex]
	for len(row) <= idx {
		row = append(row, "")
	}
	row[idx] = value
	s.rows[rowIndex] = row
}

// flush rewrites the record file, keeping a timestamped backup of the
// previous version.
func (s *CSVSource) flush() error {
	backup := fmt.Sprintf("%s.bak-%s", s.path, time.Now().Format("20060102-150405"))
	if data, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(backup, data, 0644); err != nil {
			slog.Warn("CSVSource.flush: failed to write backup", "error", err, "backup", backup)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		slog.Error("CSVSource.flush: failed to rewrite records file", "error", err, "path", s.path)
		return fmt.Errorf("failed to rewrite records file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(s.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := w.WriteAll(s.rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	w.Flush()
	return w.Error()
}
