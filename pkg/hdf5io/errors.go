package hdf5io

import "fmt"

// ErrOpenFile represents an error when opening or creating a file.
type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error { return e.Err }

// ErrCreateGroup represents an error when creating a group.
type ErrCreateGroup struct {
	GroupName string
	Err       error
}

func (e *ErrCreateGroup) Error() string {
	return fmt.Sprintf("error creating group %q: %v", e.GroupName, e.Err)
}

func (e *ErrCreateGroup) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table or array.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrReadDataset represents an error when reading a dataset.
type ErrReadDataset struct {
	Dataset string
	Err     error
}

func (e *ErrReadDataset) Error() string {
	return fmt.Sprintf("error reading dataset %q: %v", e.Dataset, e.Err)
}

func (e *ErrReadDataset) Unwrap() error { return e.Err }
