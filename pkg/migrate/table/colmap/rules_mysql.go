package colmap

// mysqlRules : MySQL COLUMN_TYPE descriptors.
//
// Order matters and is narrow to broad inside every base type: tinyint(1) is how MySQL
// spells BOOLEAN so it comes before plain tinyint, and the unsigned variants come before
// the signed ones because an unsigned INT does not fit a signed 32 bit INTEGER. The
// predicates still exclude each other (the signed rules require !Unsigned, tinyint
// requires width != 1) so that no descriptor is ever claimed by two rules.
// Matching is on the parsed base name, never on substrings, so "point" is not an "int".
var mysqlRules = []Rule{
	{
		Name:   "mysql_boolean",
		Match:  func(d Descriptor) bool { return d.Is("bool", "boolean") || (d.Is("tinyint") && d.Width() == 1) },
		Family: Bool,
	},
	{
		Name:   "mysql_tinyint",
		Match:  func(d Descriptor) bool { return d.Is("tinyint") && d.Width() != 1 },
		Family: SmallInt,
	},
	{
		Name:   "mysql_smallint_unsigned",
		Match:  func(d Descriptor) bool { return d.Is("smallint") && d.Unsigned },
		Family: Int,
	},
	{
		Name:   "mysql_smallint",
		Match:  func(d Descriptor) bool { return d.Is("smallint") && !d.Unsigned },
		Family: SmallInt,
	},
	{
		Name:   "mysql_int_unsigned",
		Match:  func(d Descriptor) bool { return d.Is("int", "integer", "mediumint") && d.Unsigned },
		Family: BigInt,
	},
	{
		Name:   "mysql_int",
		Match:  func(d Descriptor) bool { return d.Is("int", "integer", "mediumint") && !d.Unsigned },
		Family: Int,
	},
	{
		Name:   "mysql_bigint_unsigned",
		Match:  func(d Descriptor) bool { return (d.Is("bigint") && d.Unsigned) || d.Is("serial") },
		Family: Decimal,
		Args:   []int{20},
	},
	{
		Name:   "mysql_bigint",
		Match:  func(d Descriptor) bool { return d.Is("bigint") && !d.Unsigned },
		Family: BigInt,
	},
	{
		Name:   "mysql_decimal",
		Match:  func(d Descriptor) bool { return d.Is("decimal", "numeric", "dec", "fixed") },
		Family: Decimal,
	},
	{
		Name:   "mysql_float",
		Match:  func(d Descriptor) bool { return d.Is("float") },
		Family: Real,
	},
	{
		Name:   "mysql_double",
		Match:  func(d Descriptor) bool { return d.Is("double", "double precision", "real") },
		Family: Double,
	},
	{
		Name:   "mysql_date",
		Match:  func(d Descriptor) bool { return d.Is("date") },
		Family: Date,
	},
	{
		Name:   "mysql_datetime",
		Match:  func(d Descriptor) bool { return d.Is("datetime", "timestamp") },
		Family: Timestamp,
	},
	{
		Name:   "mysql_time",
		Match:  func(d Descriptor) bool { return d.Is("time") },
		Family: Time,
	},
	{
		Name:   "mysql_year",
		Match:  func(d Descriptor) bool { return d.Is("year") },
		Family: SmallInt,
	},
	{
		Name: "mysql_text",
		Match: func(d Descriptor) bool {
			return d.Is("char", "varchar", "tinytext", "text", "mediumtext", "longtext", "enum", "set")
		},
		Family: Text,
	},
	{
		Name: "mysql_binary",
		Match: func(d Descriptor) bool {
			return d.Is("binary", "varbinary", "tinyblob", "blob", "mediumblob", "longblob", "bit")
		},
		Family: Binary,
	},
	{
		Name:   "mysql_json",
		Match:  func(d Descriptor) bool { return d.Is("json") },
		Family: JSON,
	},
}
