package client

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/ValentinKolb/csIPC/cmd/util"
	"github.com/ValentinKolb/csIPC/rpc/client"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/spf13/cobra"
)

var (
	pingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Checks that the service answers status probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext()
			defer cancel()
			resp, err := client.CallAs[*proto.ConnectStatusResponse](ctx, ipcClient, &proto.ConnectStatusRequest{})
			if err != nil {
				return err
			}
			if resp.Status != proto.StatusConnected {
				return fmt.Errorf("service reports status %d", resp.Status)
			}
			fmt.Printf("service at %s is connected\n", config.Endpoint)
			return nil
		},
	}
	clientsCmd = &cobra.Command{
		Use:   "clients",
		Short: "Lists the remote clients known to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := callContext()
			defer cancel()
			resp, err := client.CallAs[*proto.ClientListResponse](ctx, ipcClient, &proto.ClientListRequest{})
			if err != nil {
				return err
			}
			if len(resp.Clients) == 0 {
				fmt.Println("no clients online")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLIENT ID\tNAME\tDEVICE\tADDRESS")
			for _, c := range resp.Clients {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\n", c.ClientID, c.DisplayName, c.DeviceType, c.IP, c.Port)
			}
			return w.Flush()
		},
	}
	announceCmd = &cobra.Command{
		Use:   "announce [client-id] [display-name]",
		Short: "Announces a remote client as online (or offline with --offline)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := proto.NewClientID(args[0])
			if err != nil {
				return err
			}
			ip, _ := cmd.Flags().GetString("ip")
			port, _ := cmd.Flags().GetUint16("port")
			deviceType, _ := cmd.Flags().GetString("device-type")
			isOffline, _ := cmd.Flags().GetBool("offline")

			status := proto.ClientOnline
			if isOffline {
				status = proto.ClientOffline
			}
			if err := ipcClient.Send(&proto.UpdateClientStatusNotify{
				Status:      status,
				IP:          ip,
				Port:        port,
				ClientID:    id,
				DisplayName: args[1],
				DeviceType:  deviceType,
			}); err != nil {
				return err
			}
			fmt.Println("announced successfully")
			return nil
		},
	}
	renameCmd = &cobra.Command{
		Use:   "rename [client-id] [display-name]",
		Short: "Changes the display name of a remote client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := proto.NewClientID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := callContext()
			defer cancel()
			resp, err := client.CallAs[*proto.UpdateDeviceNameResponse](ctx, ipcClient, &proto.UpdateDeviceNameRequest{
				ClientID:    id,
				DisplayName: args[1],
			})
			if err != nil {
				return err
			}
			if resp.Status != proto.ResultSuccess {
				return fmt.Errorf("rename rejected with status %d", resp.Status)
			}
			fmt.Println("renamed successfully")
			return nil
		},
	}
	notifyCmd = &cobra.Command{
		Use:   "notify [code] [params...]",
		Short: "Sends a generic notification to the service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("code must be a number: %w", err)
			}
			if err := ipcClient.Send(&proto.NotifyMessage{
				Timestamp: now(),
				NotiCode:  uint32(code),
				Params:    args[1:],
			}); err != nil {
				return err
			}
			fmt.Println("notification sent")
			return nil
		},
	}
	sendFileCmd = &cobra.Command{
		Use:   "send-file [client-id] [path...]",
		Short: "Asks the service to send files to a remote client",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := proto.NewClientID(args[0])
			if err != nil {
				return err
			}
			req, err := newSendFileRequest(id, args[1:])
			if err != nil {
				return err
			}
			req.IP, _ = cmd.Flags().GetString("ip")
			req.Port, _ = cmd.Flags().GetUint16("port")

			if wait, _ := cmd.Flags().GetBool("wait"); !wait {
				if err := ipcClient.Send(req); err != nil {
					return err
				}
				fmt.Println("request sent")
				return nil
			}

			ctx, cancel := callContext()
			defer cancel()
			resp, err := client.CallAs[*proto.SendFileResponse](ctx, ipcClient, req)
			if err != nil {
				return err
			}
			fmt.Printf("transfer %d answered with status %d by %s\n", resp.Timestamp, resp.Status, resp.ClientID)
			return nil
		},
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Prints every message the service pushes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigs)

			for {
				select {
				case msg := <-pushed:
					fmt.Printf("%-28s %+v\n", msg.Kind(), msg)
					if _, ok := msg.(*proto.ServiceShutdownNotify); ok {
						return nil
					}
				case <-ipcClient.Done():
					fmt.Println("service closed the connection")
					return nil
				case <-sigs:
					return nil
				}
			}
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{announceCmd, sendFileCmd} {
		cmd.Flags().String("ip", "", util.WrapString("IP address of the remote client"))
		cmd.Flags().Uint16("port", 0, util.WrapString("Port of the remote client"))
	}
	announceCmd.Flags().String("device-type", "", util.WrapString("Device type shown next to the client"))
	announceCmd.Flags().Bool("offline", false, util.WrapString("Announce the client as offline"))
	sendFileCmd.Flags().Bool("wait", false, util.WrapString("Wait for the service's response"))
}

// newSendFileRequest describes the given local files. The first file is the
// main file, all others travel as extra paths.
func newSendFileRequest(id proto.ClientID, paths []string) (*proto.SendFileRequest, error) {
	req := &proto.SendFileRequest{ClientID: id, Timestamp: now()}
	for i, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		req.FileSize += uint64(info.Size())
		if i == 0 {
			req.FileName = abs
		} else {
			req.ExtraPaths = append(req.ExtraPaths, abs)
		}
	}
	return req, nil
}
