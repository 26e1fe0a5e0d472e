// Package csv implements the CSV dialect used across csvkit: parsing text
// into a Table, serializing a Table back to text, and projecting records
// onto their header by column name.
//
// The dialect follows RFC 4180 with a configurable delimiter and quote
// character:
//
//   - records are separated by "\n" ("\r\n" is accepted when parsing)
//   - fields are separated by the delimiter (default ',')
//   - a field that starts with the quote character (default '"') runs to the
//     matching closing quote and may contain delimiters and newlines; a
//     doubled quote inside it is one literal quote
//   - a quote inside an unquoted field is an error
//
// # Thread Safety
//
// Every function is pure: it reads its arguments, never modifies them, and
// keeps no state between calls. Concurrent use needs no coordination, and a
// Table returned by Parse is owned by the caller.
//
// # Example
//
//	t, err := csv.Parse("name,age\nAlice,30\n", csv.Config{HasHeader: true})
//	if err != nil {
//	    // errors.Is(err, csv.ErrMalformedRow) / csv.ErrMalformedField
//	}
//	rows, _ := t.Rows()
//	name, _ := rows[0].Get("name") // "Alice"
//
//	text, err := csv.Serialize(t, csv.Config{HasHeader: true})
//	// text == "name,age\nAlice,30\n"
//
// # Quoting policy
//
// Serialize quotes only when needed (see Serialize). This changes the bytes
// produced compared to quote-everything writers but never the parsed result.
package csv
