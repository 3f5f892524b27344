package operations

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func printJSON(data interface{}) error {
	out, err := json.MarshalIndent(data, "", "   ")
	if err != nil {
		return errors.Wrap(err, "problem rendering result")
	}

	fmt.Println(string(out))
	return nil
}

func writeOutput(fn string, data []byte) error {
	f, err := os.Create(fn)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if _, err = f.Write(data); err != nil {
		return errors.WithStack(err)
	}

	if err = f.Sync(); err != nil {
		return err
	}

	return nil
}
