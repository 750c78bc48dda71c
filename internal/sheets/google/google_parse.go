package google

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taller/internal/classify"
	"taller/internal/core"
	ports "taller/internal/sheets"
)

// rowNamespace scopes the IDs derived for rows without an ID column, so a
// re-import overwrites instead of duplicating.
var rowNamespace = uuid.MustParse("6f1c7a52-3c8e-4d0b-9a55-1d2e7f0c4b19")

// Header aliases, compared after folding.
var (
	colID          = []string{"id"}
	colDate        = []string{"fecha", "date"}
	colConcept     = []string{"concepto", "nombre", "name"}
	colDescription = []string{"descripcion", "detalle", "description"}
	colAmount      = []string{"monto", "importe", "amount"}
	colDepartment  = []string{"departamento", "area", "department"}
	colType        = []string{"tipo", "type"}
	colMethod      = []string{"metodo", "metodo de pago", "method"}
	colEmployee    = []string{"empleado", "employee"}
	colRole        = []string{"rol", "cargo", "role"}
	colActive      = []string{"activo", "active"}
)

type header map[string]int

func parseHeader(row []interface{}) header {
	h := header{}
	for i, v := range toStrings(row) {
		if k := classify.Fold(v); k != "" {
			if _, dup := h[k]; !dup {
				h[k] = i
			}
		}
	}
	return h
}

func (h header) index(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}
	return -1
}

func (h header) require(sheet string, cols ...[]string) error {
	var missing []string
	for _, c := range cols {
		if h.index(c) == -1 {
			missing = append(missing, c[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("sheet %s: missing columns %s", sheet, strings.Join(missing, ", "))
	}
	return nil
}

func parseExpenses(sheet string, values [][]interface{}) ([]core.Expense, []ports.RowError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	h := parseHeader(values[0])
	if err := h.require(sheet, colDate, colConcept, colAmount); err != nil {
		return nil, nil, err
	}
	var (
		iID, iDate, iName = h.index(colID), h.index(colDate), h.index(colConcept)
		iDesc, iAmount    = h.index(colDescription), h.index(colAmount)
		iDept, iType      = h.index(colDepartment), h.index(colType)
		iMethod           = h.index(colMethod)
		out               []core.Expense
		errs              []ports.RowError
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		rowNum := i + 1
		amt, err := core.ParseAmount(safeGet(row, iAmount))
		if err != nil {
			errs = append(errs, ports.RowError{Sheet: sheet, Row: rowNum, Err: err.Error()})
			continue
		}
		e := core.Expense{
			ID:          safeGet(row, iID),
			Date:        core.LenientDate(safeGet(row, iDate)),
			Name:        safeGet(row, iName),
			Description: safeGet(row, iDesc),
			Amount:      amt,
			Department:  safeGet(row, iDept),
			Type:        safeGet(row, iType),
			MethodLabel: safeGet(row, iMethod),
		}
		if e.ID == "" {
			e.ID = rowID(sheet, rowNum, safeGet(row, iDate), e.Name, amt.String())
		}
		out = append(out, e)
	}
	return out, errs, nil
}

func parsePayroll(sheet string, values [][]interface{}, emps []core.Employee) ([]core.PayrollPayment, []ports.RowError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	h := parseHeader(values[0])
	if err := h.require(sheet, colDate, colEmployee, colAmount); err != nil {
		return nil, nil, err
	}
	byName := make(map[string]string, len(emps))
	for _, e := range emps {
		byName[classify.Fold(e.Name)] = e.ID
		byName[classify.Fold(e.ID)] = e.ID
	}
	var (
		iID, iDate, iEmp = h.index(colID), h.index(colDate), h.index(colEmployee)
		iAmount, iMethod = h.index(colAmount), h.index(colMethod)
		out              []core.PayrollPayment
		errs             []ports.RowError
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		rowNum := i + 1
		amt, err := core.ParseAmount(safeGet(row, iAmount))
		if err != nil {
			errs = append(errs, ports.RowError{Sheet: sheet, Row: rowNum, Err: err.Error()})
			continue
		}
		who := safeGet(row, iEmp)
		empID, ok := byName[classify.Fold(who)]
		if !ok {
			// Still imported: the payment counts in the general view.
			errs = append(errs, ports.RowError{Sheet: sheet, Row: rowNum, Err: fmt.Sprintf("unknown employee %q", who)})
			empID = who
		}
		p := core.PayrollPayment{
			ID:          safeGet(row, iID),
			EmployeeID:  empID,
			Date:        core.LenientDate(safeGet(row, iDate)),
			Amount:      amt,
			MethodLabel: safeGet(row, iMethod),
		}
		if p.ID == "" {
			p.ID = rowID(sheet, rowNum, safeGet(row, iDate), who, amt.String())
		}
		out = append(out, p)
	}
	return out, errs, nil
}

func parseEmployees(sheet string, values [][]interface{}) ([]core.Employee, []ports.RowError, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	h := parseHeader(values[0])
	if err := h.require(sheet, colConcept, colRole); err != nil {
		return nil, nil, err
	}
	var (
		iID, iName, iRole = h.index(colID), h.index(colConcept), h.index(colRole)
		iActive           = h.index(colActive)
		out               []core.Employee
		errs              []ports.RowError
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		if blank(row) {
			continue
		}
		name := safeGet(row, iName)
		if name == "" {
			errs = append(errs, ports.RowError{Sheet: sheet, Row: i + 1, Err: "missing name"})
			continue
		}
		e := core.Employee{
			ID:        safeGet(row, iID),
			Name:      name,
			RoleLabel: safeGet(row, iRole),
			Active:    iActive == -1 || truthy(safeGet(row, iActive)),
		}
		if e.ID == "" {
			e.ID = uuid.NewSHA1(rowNamespace, []byte(sheet+"|"+classify.Fold(name))).String()
		}
		out = append(out, e)
	}
	return out, errs, nil
}

func rowID(sheet string, row int, parts ...string) string {
	key := fmt.Sprintf("%s|%d|%s", sheet, row, strings.Join(parts, "|"))
	return uuid.NewSHA1(rowNamespace, []byte(key)).String()
}

func truthy(s string) bool {
	switch classify.Fold(s) {
	case "", "si", "s", "yes", "y", "true", "1", "x", "activo":
		return true
	}
	return false
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
