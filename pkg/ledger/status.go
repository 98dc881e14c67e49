package ledger

import "github.com/mcclellann/cuotas/pkg/models"

// DeriveClientStatus aggregates the statuses of a client's loans. Any
// delinquent loan makes the client delinquent; a client whose loans are all
// paid is paid; otherwise any pending loan makes it pending. A client without
// loans keeps current.
func DeriveClientStatus(current models.Status, loans []*models.Loan) models.Status {
	var pending, paid int
	for _, loan := range loans {
		switch loan.Status {
		case models.StatusDelinquent:
			return models.StatusDelinquent
		case models.StatusPaid:
			paid++
		case models.StatusPending:
			pending++
		}
	}
	switch {
	case paid > 0 && paid == len(loans):
		return models.StatusPaid
	case pending > 0:
		return models.StatusPending
	}
	return current
}
