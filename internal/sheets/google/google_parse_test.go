package google

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseExpenses(t *testing.T) {
	values := [][]interface{}{
		{"Fecha", "Concepto", "Monto", "Departamento", "Tipo", "Método"},
		{"2025-03-05", "Tinta magenta", "12,50", "Impresión", "insumo", "Efectivo"},
		{"05/03/2025", "[PAGO SERVICIO] Luz", "$1.234,00", "", "", "Pago móvil"},
		{"", "", "", "", "", ""},
		{"mañana", "Acrílico", "30", "laser"},
		{"2025-03-07", "Lija", "abc"},
	}

	got, rowErrs, err := parseExpenses("Gastos", values)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 expenses, got %d", len(got))
	}
	if len(rowErrs) != 1 || rowErrs[0].Row != 6 {
		t.Fatalf("expected one row error on row 6, got %+v", rowErrs)
	}

	if got[0].Amount.String() != "12.5" || got[0].Department != "Impresión" || got[0].MethodLabel != "Efectivo" {
		t.Errorf("unexpected first expense %+v", got[0])
	}
	if got[1].Amount.String() != "1234" || got[1].Date.String() != "2025-03-05" {
		t.Errorf("unexpected second expense %+v", got[1])
	}
	if got[2].Date.Valid() {
		t.Errorf("expected malformed date to be kept as zero, got %s", got[2].Date)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct derived IDs, got %q and %q", got[0].ID, got[1].ID)
	}

	again, _, _ := parseExpenses("Gastos", values)
	if again[0].ID != got[0].ID {
		t.Errorf("derived IDs must be stable across imports")
	}
}

func TestParseExpensesMissingColumns(t *testing.T) {
	_, _, err := parseExpenses("Gastos", [][]interface{}{{"Fecha", "Detalle"}})
	if err == nil || !strings.Contains(err.Error(), "concepto") || !strings.Contains(err.Error(), "monto") {
		t.Fatalf("expected missing columns error, got %v", err)
	}
}

func TestParseEmployeesAndPayroll(t *testing.T) {
	emps, rowErrs, err := parseEmployees("Empleados", [][]interface{}{
		{"ID", "Nombre", "Rol", "Activo"},
		{"emp1", "Pedro Pérez", "Impresor", "sí"},
		{"", "Ana", "Diseñadora", ""},
		{"emp3", "Luis", "Operador láser", "no"},
		{"emp4", "", "Ayudante", "si"},
	})
	if err != nil {
		t.Fatalf("parse employees: %v", err)
	}
	if len(emps) != 3 || len(rowErrs) != 1 {
		t.Fatalf("expected 3 employees and 1 row error, got %d and %d", len(emps), len(rowErrs))
	}
	if !emps[0].Active || !emps[1].Active || emps[2].Active {
		t.Errorf("unexpected active flags: %v %v %v", emps[0].Active, emps[1].Active, emps[2].Active)
	}
	if emps[1].ID == "" {
		t.Errorf("expected derived ID for Ana")
	}

	pay, rowErrs, err := parsePayroll("Nomina", [][]interface{}{
		{"Fecha", "Empleado", "Monto", "Metodo"},
		{"2025-03-15", "pedro perez", "200", "Zelle"},
		{"2025-03-15", "Ana", "150.5", "Efectivo"},
		{"2025-03-15", "Desconocido", "90", "Efectivo"},
		{"2025-03-15", "Luis", "-5", "Efectivo"},
	}, emps)
	if err != nil {
		t.Fatalf("parse payroll: %v", err)
	}
	if len(pay) != 3 {
		t.Fatalf("expected 3 payroll payments, got %d", len(pay))
	}
	if pay[0].EmployeeID != "emp1" || pay[1].EmployeeID != emps[1].ID {
		t.Errorf("employees not resolved: %q %q", pay[0].EmployeeID, pay[1].EmployeeID)
	}
	if pay[2].EmployeeID != "Desconocido" {
		t.Errorf("unknown employee kept verbatim, got %q", pay[2].EmployeeID)
	}
	if len(rowErrs) != 2 {
		t.Errorf("expected unknown employee and negative amount errors, got %+v", rowErrs)
	}
	if !pay[1].Amount.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("unexpected amount %s", pay[1].Amount)
	}
}
