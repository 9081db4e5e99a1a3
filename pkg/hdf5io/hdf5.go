package hdf5io

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// CompressionLevel is the deflate level of chunked tables.
var CompressionLevel = 4

func createFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func openFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.OpenFile(fname, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

// createTable creates an extensible compound table with the layout of
// datatype.
func createTable(group *hdf5.Group, name string, datatype interface{}) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()
	plist.SetChunk([]uint{1024})
	plist.SetDeflate(CompressionLevel)

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

// createArray creates a fixed size float64 array.
func createArray(group *hdf5.Group, name string, dims []uint) (*hdf5.Dataset, error) {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()
	dset, err := group.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

// writeArrayToTable appends data at row offset.
func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, offset int) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	if err := dataset.Resize([]uint{uint(offset) + length}); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()
	if err := filespace.SelectHyperslab([]uint{uint(offset)}, nil, []uint{length}, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}

// readArray reads a float64 dataset of the group and returns its
// dimensions.
func readArray(group *hdf5.Group, name string) ([]float64, []uint, error) {
	dset, err := group.OpenDataset(name)
	if err != nil {
		return nil, nil, &ErrReadDataset{Dataset: name, Err: err}
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, nil, &ErrReadDataset{Dataset: name, Err: err}
	}
	size := uint(1)
	for _, d := range dims {
		size *= d
	}
	data := make([]float64, size)
	if size == 0 {
		return data, dims, nil
	}
	if err := dset.Read(&data); err != nil {
		return nil, nil, &ErrReadDataset{Dataset: name, Err: err}
	}
	return data, dims, nil
}

func checkDims(name string, dims []uint, want ...uint) error {
	if len(dims) != len(want) {
		return &ErrReadDataset{Dataset: name, Err: fmt.Errorf("rank %d, expected %d", len(dims), len(want))}
	}
	for i := range dims {
		if dims[i] != want[i] {
			return &ErrReadDataset{Dataset: name, Err: fmt.Errorf("dimensions %v, expected %v", dims, want)}
		}
	}
	return nil
}
