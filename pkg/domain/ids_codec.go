package domain

import (
	"database/sql/driver"

	"github.com/google/uuid"
)

// Text and SQL codecs delegate to uuid.UUID so typed IDs serialize as the
// canonical string form in JSON and bind as uuid columns.

func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id SubmissionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id AuditEventID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OrganizationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SubmissionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditEventID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id UserID) Value() (driver.Value, error)         { return uuid.UUID(id).Value() }
func (id OrganizationID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }
func (id SubmissionID) Value() (driver.Value, error)   { return uuid.UUID(id).Value() }
func (id AuditEventID) Value() (driver.Value, error)   { return uuid.UUID(id).Value() }

func (id *UserID) Scan(src any) error         { return (*uuid.UUID)(id).Scan(src) }
func (id *OrganizationID) Scan(src any) error { return (*uuid.UUID)(id).Scan(src) }
func (id *SubmissionID) Scan(src any) error   { return (*uuid.UUID)(id).Scan(src) }
func (id *AuditEventID) Scan(src any) error   { return (*uuid.UUID)(id).Scan(src) }
