package agent

import "os"

type filesystemManagement interface {
	writeSummaryFile(filepath string, data []byte) error
}

type fileManagement struct{}

func (fs *fileManagement) writeSummaryFile(filepath string, data []byte) error {
	return os.WriteFile(filepath, data, 0600)
}
