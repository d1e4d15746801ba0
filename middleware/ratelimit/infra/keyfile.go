package infra

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"strconv"
	"time"
)

// Formato do arquivo de chave: um unix timestamp (segundos) decimal por linha,
// terminado em '\n', sem nenhum outro metadado.

// keyFileName é o nome do arquivo da chave: sha1 em hex minúsculo (40 chars).
// Determinístico e irreversível, então o IP nunca aparece no disco.
func keyFileName(key string) string {
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// encodeStamp devolve a linha pronta para um único Write (append atômico).
func encodeStamp(ts int64) []byte {
	b := make([]byte, 0, 21)
	b = strconv.AppendInt(b, ts, 10)
	return append(b, '\n')
}

// compaction é o resultado de varrer um arquivo de chave.
type compaction struct {
	kept    []int64
	dropped int
}

func (c compaction) count() int { return len(c.kept) }

// changed indica se o arquivo precisa ser reescrito.
func (c compaction) changed() bool { return c.dropped > 0 }

func (c compaction) encode() []byte {
	var buf bytes.Buffer
	buf.Grow(len(c.kept) * 11)
	for _, ts := range c.kept {
		buf.Write(encodeStamp(ts))
	}
	return buf.Bytes()
}

// compact lê o arquivo linha a linha e mantém só os timestamps dentro da janela
// (now - ts < period). Linhas malformadas, vazias ou maiores que o buffer de
// leitura são descartadas.
// Um erro de leitura invalida o resultado inteiro: contar parcialmente seria mentir.
func compact(r io.Reader, now time.Time, period time.Duration) (compaction, error) {
	var c compaction
	nowSec := now.Unix()
	periodSec := int64(period / time.Second)

	br := bufio.NewReader(r)
	long := false
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			long = true
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return compaction{}, err
		}
		eof := err != nil
		if eof && len(line) == 0 && !long {
			break
		}

		if long {
			long = false
			c.dropped++
		} else if ts, perr := strconv.ParseInt(string(bytes.TrimSpace(line)), 10, 64); perr != nil {
			c.dropped++
		} else if nowSec-ts < periodSec {
			c.kept = append(c.kept, ts)
		} else {
			c.dropped++
		}

		if eof {
			break
		}
	}
	return c, nil
}
