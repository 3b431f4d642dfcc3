package utils

const ShortSlashDateLayout = "2006/01/02"
const ShortDashDateLayout = "2006-01-02"

// LedgerScale is the number of decimal places kept for every quantity, price
// and amount written to the ledger. It matches the numeric(28,8) columns.
const LedgerScale = 8
