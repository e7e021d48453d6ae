package colmap

import "strings"

type sqliteAffinity int

const (
	affInteger sqliteAffinity = iota
	affText
	affBlob
	affReal
	affNumeric
)

// affinity : the column affinity algorithm from https://www.sqlite.org/datatype3.html,
// applied in the documented order. declared types like "CHARINT" really are INTEGER
func affinity(d Descriptor) sqliteAffinity {
	s := strings.ToLower(d.Raw)
	switch {
	case strings.Contains(s, "int"):
		return affInteger
	case strings.Contains(s, "char"), strings.Contains(s, "clob"), strings.Contains(s, "text"):
		return affText
	case strings.Contains(s, "blob"), strings.TrimSpace(s) == "":
		return affBlob
	case strings.Contains(s, "real"), strings.Contains(s, "floa"), strings.Contains(s, "doub"):
		return affReal
	}
	return affNumeric
}

func rawContains(d Descriptor, fragments ...string) bool {
	s := strings.ToLower(d.Raw)
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// numericKind : splits NUMERIC affinity on the spelling people use, first hit wins
func numericKind(d Descriptor) Family {
	switch {
	case rawContains(d, "bool"):
		return Bool
	case rawContains(d, "datetime", "timestamp"):
		return Timestamp
	case rawContains(d, "date"):
		return Date
	case rawContains(d, "time"):
		return Time
	}
	return Decimal
}

func sqliteNumeric(f Family) func(d Descriptor) bool {
	return func(d Descriptor) bool {
		return affinity(d) == affNumeric && numericKind(d) == f
	}
}

// sqliteRules : declared SQLite types. affinity decides first and numericKind second, both
// are ordered switches, so no declared type can satisfy two rules. an empty declared type
// is left to the fallback since such a column can hold anything
var sqliteRules = []Rule{
	{
		Name:   "sqlite_integer",
		Match:  func(d Descriptor) bool { return affinity(d) == affInteger },
		Family: BigInt,
	},
	{
		Name:   "sqlite_text",
		Match:  func(d Descriptor) bool { return affinity(d) == affText },
		Family: Text,
	},
	{
		Name:   "sqlite_blob",
		Match:  func(d Descriptor) bool { return affinity(d) == affBlob && rawContains(d, "blob") },
		Family: Binary,
	},
	{
		Name:   "sqlite_real",
		Match:  func(d Descriptor) bool { return affinity(d) == affReal },
		Family: Double,
	},
	{Name: "sqlite_boolean", Match: sqliteNumeric(Bool), Family: Bool},
	{Name: "sqlite_datetime", Match: sqliteNumeric(Timestamp), Family: Timestamp},
	{Name: "sqlite_date", Match: sqliteNumeric(Date), Family: Date},
	{Name: "sqlite_time", Match: sqliteNumeric(Time), Family: Time},
	{Name: "sqlite_decimal", Match: sqliteNumeric(Decimal), Family: Decimal},
}
