// Package gaussconn implements the connector of spec.md section 4.3: one
// physical socket, its read/write buffers, its protocol state machine, and
// its prepared-statement cache. It is grounded on pgconn.go's connect/auth
// state machine (github.com/jackc/pgx/v5/pgconn), generalized from a single
// AuthenticationOk/MD5/SASL/GSS switch into the explicit Connector state
// machine spec.md names, with an added openGauss SHA-256 authentication
// branch.
package gaussconn
