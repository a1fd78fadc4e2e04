// Package filexfer implements the file-transfer sub-protocol (C8) shared by
// every plugin that streams bulk binary data over the framed channel:
// file.upload/download, open.open_file, nots packageIcon, and
// sync.dir_upload/dir_download. Factoring this out of four near-identical
// copies follows spec §9's "keep HOW, generalize" guidance; the algorithm
// itself is unchanged from spec §4.8 (source: original_source/dcnnt/plugins/base.py
// BaseFilePlugin.receive_file/send_file).
package filexfer

import (
	"fmt"
	"io"
	"os"

	"github.com/dcnnt/dcnntd/internal/plugin"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// PartSize is the maximum plaintext payload per framed record while
// streaming a file body, matching the source's BaseFilePlugin.PART.
const PartSize = 65532

// Channel is the subset of *rpc.Transport the send/receive helpers need.
type Channel interface {
	ReadRaw() ([]byte, error)
	WriteRaw(plaintext []byte) error
	SendResponse(resp *rpc.Response) error
	ReadRequest() (*rpc.Request, *rpc.Error, error)
}

// Send implements the server→client half of spec §4.8: reply with
// {code:0,message:"OK"[,size]}, then stream path's contents as consecutive
// framed records of up to PartSize bytes. size, when non-nil, is the
// caller-specified expected size (file.download's params.size); it must
// match the file's on-disk size or the transfer is refused.
//
// The returned Outcome's Response is always nil on the success path: the
// initial OK and the chunk stream are written directly to t, not via the
// dispatcher's post-Handle reply.
func Send(t Channel, id any, path string, size *int64) plugin.Outcome {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return plugin.ContinueResult(id, map[string]any{"code": 2, "message": "No such file"})
	}

	fileSize := info.Size()
	result := map[string]any{"code": 0, "message": "OK"}
	if size != nil {
		if fileSize != *size {
			return plugin.ContinueResult(id, map[string]any{"code": 2, "message": "Size mismatch"})
		}
	} else {
		result["size"] = fileSize
	}

	resp, err := rpc.NewResultResponse(id, result)
	if err != nil {
		return plugin.Kill(fmt.Sprintf("marshal send response: %v", err))
	}
	if err := t.SendResponse(resp); err != nil {
		return plugin.Kill(fmt.Sprintf("send response: %v", err))
	}

	f, err := os.Open(path)
	if err != nil {
		return plugin.Kill(fmt.Sprintf("open file for send: %v", err))
	}
	defer f.Close()

	buf := make([]byte, PartSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if writeErr := t.WriteRaw(buf[:n]); writeErr != nil {
				return plugin.Kill(fmt.Sprintf("write file chunk: %v", writeErr))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return plugin.Kill(fmt.Sprintf("read file for send: %v", readErr))
		}
	}
	return plugin.Continue(nil)
}

// Receive implements the client→server half of spec §4.8: acknowledge the
// request, consume framed records until exactly size bytes have been
// written to destPath, handle the zero-length-record + cancel notification
// sequence, then acknowledge completion a second time.
func Receive(t Channel, id any, destPath string, size int64) plugin.Outcome {
	okResp, err := rpc.NewResultResponse(id, map[string]any{"code": 0, "message": "OK"})
	if err != nil {
		return plugin.Kill(fmt.Sprintf("marshal receive ack: %v", err))
	}
	if err := t.SendResponse(okResp); err != nil {
		return plugin.Kill(fmt.Sprintf("send receive ack: %v", err))
	}

	f, err := os.Create(destPath)
	if err != nil {
		return plugin.Kill(fmt.Sprintf("create destination file: %v", err))
	}
	defer f.Close()

	var received int64
	for received < size {
		buf, err := t.ReadRaw()
		if err != nil {
			return plugin.Kill(fmt.Sprintf("file receive aborted (%d bytes received): %v", received, err))
		}

		if len(buf) == 0 {
			return receiveCancel(t, id)
		}

		if _, err := f.Write(buf); err != nil {
			return plugin.Kill(fmt.Sprintf("write received chunk: %v", err))
		}
		received += int64(len(buf))
	}

	doneResp, err := rpc.NewResultResponse(id, map[string]any{"code": 0, "message": "OK"})
	if err != nil {
		return plugin.Kill(fmt.Sprintf("marshal receive completion: %v", err))
	}
	if err := t.SendResponse(doneResp); err != nil {
		return plugin.Kill(fmt.Sprintf("send receive completion: %v", err))
	}
	return plugin.Continue(nil)
}

// receiveCancel consumes the cancel notification that must follow a
// zero-length control record and replies with the canceled result.
func receiveCancel(t Channel, id any) plugin.Outcome {
	cancelReq, decErr, err := t.ReadRequest()
	if err != nil {
		return plugin.Kill(fmt.Sprintf("read cancel notification: %v", err))
	}
	if decErr != nil || cancelReq == nil || cancelReq.Method != "cancel" {
		return plugin.Kill("expected cancel notification after zero-length record")
	}

	resp, err := rpc.NewResultResponse(id, map[string]any{"code": 1, "message": "Canceled"})
	if err != nil {
		return plugin.Kill(fmt.Sprintf("marshal cancel response: %v", err))
	}
	if err := t.SendResponse(resp); err != nil {
		return plugin.Kill(fmt.Sprintf("send cancel response: %v", err))
	}
	return plugin.Continue(nil)
}

// ReadFrame reads one raw framed record as a non-file-transfer binary
// payload (notification icons), returning it verbatim.
func ReadFrame(t Channel) ([]byte, error) {
	return t.ReadRaw()
}
