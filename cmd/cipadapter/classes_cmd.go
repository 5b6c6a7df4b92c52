package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/connmgr"
	"github.com/tturner/cipadapter/internal/logging"
	"github.com/tturner/cipadapter/internal/stack"
)

var standardClassNames = map[uint16]string{
	0x01: "Identity",
	0x02: "Message Router",
	0x04: "Assembly",
	0x06: "Connection Manager",
	0xF5: "TCP/IP Interface",
	0xF6: "Ethernet Link",
}

func newListClassesCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "list-classes",
		Short: "List the CIP classes and instances a config would register",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.CreateDefaultConfig()
			if cfgPath != "" {
				loaded, err := config.LoadConfig(cfgPath, false)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logger, err := logging.NewLogger(logging.LogLevelSilent, "")
			if err != nil {
				return err
			}
			defer logger.Close()

			s, err := stack.New(cfg, noopApplication{}, logger)
			if err != nil {
				return fmt.Errorf("build stack: %w", err)
			}

			for _, classID := range s.Registry.SortedClassIDs() {
				cls, _ := s.Registry.GetClass(classID)
				name := standardClassNames[classID]
				if name == "" {
					name = "(vendor)"
				}
				fmt.Fprintf(os.Stdout, "class %#04x %-20s instances:", classID, name)
				for _, instID := range cls.SortedInstanceIDs() {
					fmt.Fprintf(os.Stdout, " %d", instID)
				}
				fmt.Fprintln(os.Stdout)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "Adapter config file path (uses the built-in default if omitted)")
	return cmd
}

// noopApplication is the zero-value ApplicationCallbacks used by commands
// that build a Stack only to inspect it, never to run it.
type noopApplication struct{}

func (noopApplication) ApplicationInitialization() error { return nil }
func (noopApplication) HandleApplication() error         { return nil }
func (noopApplication) CheckIoConnectionEvent(consumingPoint, producingPoint int32, event connmgr.ConnectionEvent) {
}
func (noopApplication) AfterAssemblyDataReceived(instanceID uint16) error { return nil }
func (noopApplication) BeforeAssemblyDataSend(instanceID uint16) bool     { return true }
func (noopApplication) ResetDevice() error                               { return nil }
func (noopApplication) ResetDeviceToInitialConfiguration() error         { return nil }
func (noopApplication) RunIdleChanged(runIdle uint32)                    {}
